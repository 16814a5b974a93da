package gbot

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

func TestMarker(t *testing.T) {
	one := agreement.CommentKey{Role: agreement.RoleBountyStatus, ID: 1}
	ten := agreement.CommentKey{Role: agreement.RoleBountyStatus, ID: 10}
	sub := agreement.CommentKey{Role: agreement.RoleSubmissionStatus, ID: 1}

	assert.Equal(t, "<!-- bounty-bot:bounty-status:1 -->", Marker(one))
	assert.True(t, HasMarker(RenderBountyStatus(bountyIssue, 1, big.NewInt(3)), one))
	assert.False(t, HasMarker(RenderBountyStatus(bountyIssue, 10, big.NewInt(3)), one))
	assert.True(t, HasMarker(RenderBountyStatus(bountyIssue, 10, big.NewInt(3)), ten))
	assert.False(t, HasMarker(RenderBountyStatus(bountyIssue, 1, big.NewInt(3)), sub))
}

func TestRenderDeterministic(t *testing.T) {
	assert.Equal(t,
		RenderSubmissionStatus(bountyIssue, 1, 4, big.NewInt(7), big.NewInt(8)),
		RenderSubmissionStatus(bountyIssue, 1, 4, big.NewInt(7), big.NewInt(8)))
	assert.NotEqual(t,
		RenderSubmissionStatus(bountyIssue, 1, 4, big.NewInt(7), nil),
		RenderSubmissionStatus(bountyIssue, 1, 4, big.NewInt(7), big.NewInt(8)))
	assert.Contains(t, RenderBountyStatus(bountyIssue, 1, nil), "| 0 |")
}

func TestRenderPaidOutBounty(t *testing.T) {
	open := RenderBountyStatus(bountyIssue, 1, big.NewInt(5))
	assert.Contains(t, open, "is open on this issue")
	assert.NotContains(t, open, "paid out")

	for _, total := range []*big.Int{big.NewInt(0), nil} {
		body := RenderBountyStatus(bountyIssue, 1, total)
		assert.Contains(t, body, "**Bounty #1** is fully paid out.")
		assert.NotContains(t, body, "is open")
		assert.Contains(t, body, "| 0 |")
	}
}

func TestSimCommentAPIIdempotent(t *testing.T) {
	sim := NewSimCommentAPI()
	ctx := context.Background()

	apply := func() {
		require.NoError(t, sim.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
		require.NoError(t, sim.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(15)))
		require.NoError(t, sim.CreateSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7)))
		require.NoError(t, sim.ApproveSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7), big.NewInt(8)))
		require.NoError(t, sim.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(8)))
	}

	apply()
	once := sim.Snapshot()
	creates, edits := sim.Writes()

	apply()
	// a full replay re-walks the totals, the final state is the same
	assert.Equal(t, once, sim.Snapshot())
	assert.Len(t, sim.Keys(), 2)

	creates2, edits2 := sim.Writes()
	assert.Equal(t, creates, creates2)
	assert.Greater(t, edits2, edits)

	body, ok := sim.Body(agreement.CommentKey{
		RepoOwner:   "sunshine-protocol",
		RepoName:    "sunshine",
		IssueNumber: 8,
		Role:        agreement.RoleBountyStatus,
		ID:          1,
	})
	require.True(t, ok)
	assert.Equal(t, RenderBountyStatus(bountyIssue, 1, big.NewInt(8)), body)
}

func TestSimCommentAPIFailure(t *testing.T) {
	sim := NewSimCommentAPI()
	ctx := context.Background()
	boom := errors.New("boom")

	sim.FailWith(func(key agreement.CommentKey) error {
		if key.Role == agreement.RoleSubmissionStatus {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, sim.CreateSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7)), boom)
	assert.NoError(t, sim.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))

	sim.FailWith(nil)
	assert.NoError(t, sim.CreateSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7)))
	assert.Len(t, sim.Keys(), 2)
}
