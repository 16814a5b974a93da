package gbot

import (
	"context"
	"math/big"

	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// commentBackend is the storage under the comment upserts: the REST API or
// an in-memory map.
type commentBackend interface {
	// find returns the bot's comment for key, or nil.
	find(ctx context.Context, key agreement.CommentKey) (*Comment, error)
	create(ctx context.Context, key agreement.CommentKey, body string) error
	edit(ctx context.Context, key agreement.CommentKey, commentID int64, body string) error
}

// commenter implements agreement.CommentAPI on top of a commentBackend.
//
// Create* only writes when the comment is missing, so a replayed posting
// never resets a later state. Update and Approve set the body, creating the
// comment when it is missing.
type commenter struct {
	backend commentBackend
}

func (c commenter) createIfAbsent(ctx context.Context, key agreement.CommentKey, body string) error {
	existing, err := c.backend.find(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.WithField("comment", key.String()).Debug("comment exists, skip create")
		return nil
	}
	return c.backend.create(ctx, key, body)
}

func (c commenter) set(ctx context.Context, key agreement.CommentKey, body string) error {
	existing, err := c.backend.find(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return c.backend.create(ctx, key, body)
	}
	if existing.Body == body {
		logger.WithField("comment", key.String()).Debug("comment up to date")
		return nil
	}
	err = c.backend.edit(ctx, key, existing.ID, body)
	if IsNotFound(err) {
		logger.WithField("comment", key.String()).Warn("comment deleted while editing, posting it again")
		return c.backend.create(ctx, key, body)
	}
	return err
}

func (c commenter) CreateBountyComment(ctx context.Context, issue agreement.BountyRecord, bountyID uint64, amount *big.Int) error {
	in := &agreement.CreateBountyComment{Issue: issue, BountyID: bountyID, Amount: amount}
	return c.createIfAbsent(ctx, in.Target(), RenderBountyStatus(issue, bountyID, amount))
}

func (c commenter) UpdateBountyComment(ctx context.Context, issue agreement.BountyRecord, bountyID uint64, newTotal *big.Int) error {
	in := &agreement.UpdateBountyComment{Issue: issue, BountyID: bountyID, NewTotal: newTotal}
	return c.set(ctx, in.Target(), RenderBountyStatus(issue, bountyID, newTotal))
}

func (c commenter) CreateSubmissionComment(ctx context.Context, bounty, submission agreement.BountyRecord, bountyID, submissionID uint64, amount *big.Int) error {
	in := &agreement.CreateSubmissionComment{Bounty: bounty, Submission: submission, BountyID: bountyID, SubmissionID: submissionID}
	return c.createIfAbsent(ctx, in.Target(), RenderSubmissionStatus(bounty, bountyID, submissionID, amount, nil))
}

func (c commenter) ApproveSubmissionComment(ctx context.Context, bounty, submission agreement.BountyRecord, bountyID, submissionID uint64, amount, newTotal *big.Int) error {
	in := &agreement.ApproveSubmissionComment{Bounty: bounty, Submission: submission, BountyID: bountyID, SubmissionID: submissionID}
	return c.set(ctx, in.Target(), RenderSubmissionStatus(bounty, bountyID, submissionID, amount, newTotal))
}
