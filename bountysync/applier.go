package bountysync

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// IntentApplier carries intents out against the issue tracker.
type IntentApplier interface {
	Apply(ctx context.Context, in agreement.MutationIntent) error
}

type applyRequest struct {
	ctx    context.Context
	intent agreement.MutationIntent
	done   chan error
}

// Applier is the single writer to the issue tracker. Every dispatcher hands
// its intents over a channel and waits for the result, so two read-then-write
// upserts on the same comment never interleave. Each write is bounded by the
// apply timeout, a hung call fails its own intent and the queue moves on.
type Applier struct {
	api     agreement.CommentAPI
	timeout time.Duration
	reqCh   chan *applyRequest
	stopped chan struct{}
}

// NewApplier takes the queue size and apply timeout from cfg, which may be nil.
func NewApplier(api agreement.CommentAPI, cfg *Config) *Applier {
	return &Applier{
		api:     api,
		timeout: cfg.applyTimeout(),
		reqCh:   make(chan *applyRequest, cfg.queueSize()),
		stopped: make(chan struct{}),
	}
}

// Start runs the write loop until ctx is done.
func (a *Applier) Start(ctx context.Context) error {
	logger.Info("starting applier")
	defer close(a.stopped)

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping applier")
			return ctx.Err()
		case req := <-a.reqCh:
			req.done <- a.apply(req.ctx, req.intent)
		}
	}
}

// Apply queues in and blocks until it has been carried out, ctx is done or
// the applier stopped.
func (a *Applier) Apply(ctx context.Context, in agreement.MutationIntent) error {
	req := &applyRequest{ctx: ctx, intent: in, done: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopped:
		return ErrApplierStopped
	case a.reqCh <- req:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopped:
		return ErrApplierStopped
	case err := <-req.done:
		return err
	}
}

func (a *Applier) apply(ctx context.Context, in agreement.MutationIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if in == nil {
		return ErrUnknownIntent(in)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var err error
	switch in := in.(type) {
	case *agreement.CreateBountyComment:
		err = a.api.CreateBountyComment(ctx, in.Issue, in.BountyID, in.Amount)
	case *agreement.UpdateBountyComment:
		err = a.api.UpdateBountyComment(ctx, in.Issue, in.BountyID, in.NewTotal)
	case *agreement.CreateSubmissionComment:
		err = a.api.CreateSubmissionComment(ctx, in.Bounty, in.Submission, in.BountyID, in.SubmissionID, in.Amount)
	case *agreement.ApproveSubmissionComment:
		err = a.api.ApproveSubmissionComment(ctx, in.Bounty, in.Submission, in.BountyID, in.SubmissionID, in.Amount, in.NewTotal)
	default:
		err = ErrUnknownIntent(in)
	}
	if err != nil {
		return &agreement.ApplyError{Intent: in, Err: err}
	}

	logger.WithFields(logger.Fields{
		"intent": in.Name(),
		"target": in.Target().String(),
	}).Debug("intent applied")
	return nil
}
