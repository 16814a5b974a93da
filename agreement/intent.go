package agreement

import (
	"fmt"
	"math/big"
)

// CommentRole tells which of the bot's comments on an issue is meant.
type CommentRole string

const (
	RoleBountyStatus     CommentRole = "bounty-status"
	RoleSubmissionStatus CommentRole = "submission-status"
)

// CommentKey identifies one bot comment on the issue tracker.
type CommentKey struct {
	RepoOwner   string
	RepoName    string
	IssueNumber uint64
	Role        CommentRole
	ID          uint64 // bounty id or submission id, depending on Role
}

func (k CommentKey) String() string {
	return fmt.Sprintf("%s/%s#%d[%s:%d]", k.RepoOwner, k.RepoName, k.IssueNumber, k.Role, k.ID)
}

func bountyKey(issue BountyRecord, bountyID uint64) CommentKey {
	return CommentKey{
		RepoOwner:   issue.RepoOwner,
		RepoName:    issue.RepoName,
		IssueNumber: issue.IssueNumber,
		Role:        RoleBountyStatus,
		ID:          bountyID,
	}
}

func submissionKey(issue BountyRecord, submissionID uint64) CommentKey {
	return CommentKey{
		RepoOwner:   issue.RepoOwner,
		RepoName:    issue.RepoName,
		IssueNumber: issue.IssueNumber,
		Role:        RoleSubmissionStatus,
		ID:          submissionID,
	}
}

// MutationIntent is one idempotent change to the issue tracker.
type MutationIntent interface {
	Name() string
	Target() CommentKey
}

// CreateBountyComment creates the bounty-status comment if it is absent.
type CreateBountyComment struct {
	Issue    BountyRecord `json:"issue"`
	BountyID uint64       `json:"bounty_id"`
	Amount   *big.Int     `json:"amount"`
}

func (in *CreateBountyComment) Name() string       { return "CreateBountyComment" }
func (in *CreateBountyComment) Target() CommentKey { return bountyKey(in.Issue, in.BountyID) }

// UpdateBountyComment sets the displayed total of a bounty.
type UpdateBountyComment struct {
	Issue    BountyRecord `json:"issue"`
	BountyID uint64       `json:"bounty_id"`
	NewTotal *big.Int     `json:"new_total"`
}

func (in *UpdateBountyComment) Name() string       { return "UpdateBountyComment" }
func (in *UpdateBountyComment) Target() CommentKey { return bountyKey(in.Issue, in.BountyID) }

// CreateSubmissionComment creates the submission-status comment on the
// submission's issue, linking back to the bounty's issue.
type CreateSubmissionComment struct {
	Bounty       BountyRecord `json:"bounty"`
	Submission   BountyRecord `json:"submission"`
	BountyID     uint64       `json:"bounty_id"`
	SubmissionID uint64       `json:"submission_id"`
	Amount       *big.Int     `json:"amount"`
}

func (in *CreateSubmissionComment) Name() string { return "CreateSubmissionComment" }
func (in *CreateSubmissionComment) Target() CommentKey {
	return submissionKey(in.Submission, in.SubmissionID)
}

// ApproveSubmissionComment marks a submission as approved and paid.
type ApproveSubmissionComment struct {
	Bounty       BountyRecord `json:"bounty"`
	Submission   BountyRecord `json:"submission"`
	BountyID     uint64       `json:"bounty_id"`
	SubmissionID uint64       `json:"submission_id"`
	Amount       *big.Int     `json:"amount"`
	NewTotal     *big.Int     `json:"new_total"`
}

func (in *ApproveSubmissionComment) Name() string { return "ApproveSubmissionComment" }
func (in *ApproveSubmissionComment) Target() CommentKey {
	return submissionKey(in.Submission, in.SubmissionID)
}
