package gbot

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/common"
)

// Marker is the hidden line that identifies the bot's comment for key.
// Only role and id go in: the issue is already given by where the comment
// lives.
func Marker(key agreement.CommentKey) string {
	return fmt.Sprintf("<!-- bounty-bot:%s:%d -->", key.Role, key.ID)
}

// HasMarker reports whether body is the bot's comment for key.
func HasMarker(body string, key agreement.CommentKey) bool {
	return strings.Contains(body, Marker(key))
}

func issueRef(rec agreement.BountyRecord) string {
	return fmt.Sprintf("%s/%s#%d", rec.RepoOwner, rec.RepoName, rec.IssueNumber)
}

// RenderBountyStatus is the body of the bounty-status comment. A bounty with
// nothing left renders as paid out.
func RenderBountyStatus(issue agreement.BountyRecord, bountyID uint64, total *big.Int) string {
	key := agreement.CommentKey{Role: agreement.RoleBountyStatus, ID: bountyID}

	var b strings.Builder
	b.WriteString(Marker(key) + "\n")
	if total == nil || total.Sign() <= 0 {
		fmt.Fprintf(&b, "**Bounty #%d** is fully paid out.\n\n", bountyID)
	} else {
		fmt.Fprintf(&b, "**Bounty #%d** is open on this issue.\n\n", bountyID)
	}
	fmt.Fprintf(&b, "| Funds available |\n|---|\n| %s |\n", common.BigIntString(total))
	return b.String()
}

// RenderSubmissionStatus is the body of the submission-status comment. A nil
// newTotal renders the submission as pending.
func RenderSubmissionStatus(bounty agreement.BountyRecord, bountyID, submissionID uint64, amount, newTotal *big.Int) string {
	key := agreement.CommentKey{Role: agreement.RoleSubmissionStatus, ID: submissionID}

	var b strings.Builder
	b.WriteString(Marker(key) + "\n")
	fmt.Fprintf(&b, "**Submission #%d** for bounty #%d (%s)\n\n", submissionID, bountyID, issueRef(bounty))
	fmt.Fprintf(&b, "| Amount requested | Status |\n|---|---|\n")
	if newTotal == nil {
		fmt.Fprintf(&b, "| %s | pending approval |\n", common.BigIntString(amount))
	} else {
		fmt.Fprintf(&b, "| %s | approved and paid |\n\n", common.BigIntString(amount))
		fmt.Fprintf(&b, "Bounty #%d has %s left.\n", bountyID, common.BigIntString(newTotal))
	}
	return b.String()
}
