// Global agreement on bounty types.

package agreement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind is one of the four bounty events the bot follows.
type EventKind int

const (
	BountyPosted EventKind = iota
	ContributionRaised
	SubmissionPosted
	PaymentExecuted
)

func (k EventKind) String() string {
	switch k {
	case BountyPosted:
		return "BountyPosted"
	case ContributionRaised:
		return "ContributionRaised"
	case SubmissionPosted:
		return "SubmissionPosted"
	case PaymentExecuted:
		return "PaymentExecuted"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// AllEventKinds returns every kind in a fixed order.
func AllEventKinds() []EventKind {
	return []EventKind{BountyPosted, ContributionRaised, SubmissionPosted, PaymentExecuted}
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range AllEventKinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind: %s", s)
}

// ContentAddress is the 32-byte digest of an off-chain document.
type ContentAddress = common.Hash

// BountyRecord is the off-chain document a bounty or a submission
// points to. It names the issue the bounty (or submission) belongs to.
type BountyRecord struct {
	RepoOwner   string `cbor:"repo_owner" json:"repo_owner"`
	RepoName    string `cbor:"repo_name" json:"repo_name"`
	IssueNumber uint64 `cbor:"issue_number" json:"issue_number"`
}

func (r BountyRecord) String() string {
	return fmt.Sprintf("%s/%s#%d", r.RepoOwner, r.RepoName, r.IssueNumber)
}

// ResolvedDocs maps the references of one event to their documents.
type ResolvedDocs map[ContentAddress]BountyRecord

// RawEvent is an undecoded log delivered by a Subscription.
type RawEvent struct {
	Kind        EventKind
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Removed     bool // reorged out of the canonical chain
	Topics      []common.Hash
	Data        []byte
}

// Event is the closed set of decoded bounty events.
type Event interface {
	Kind() EventKind
	// Refs returns every content address the event needs resolved.
	Refs() []ContentAddress
}

// BountyPostedEvent is emitted when a new bounty is posted.
type BountyPostedEvent struct {
	ID             uint64
	Amount         *big.Int
	DescriptionRef ContentAddress
}

func (ev *BountyPostedEvent) Kind() EventKind        { return BountyPosted }
func (ev *BountyPostedEvent) Refs() []ContentAddress { return []ContentAddress{ev.DescriptionRef} }

func (ev *BountyPostedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// ContributionRaisedEvent is emitted when someone adds funds to a bounty.
// Total is the bounty's running total after the contribution.
type ContributionRaisedEvent struct {
	BountyID  uint64
	Amount    *big.Int
	Total     *big.Int
	BountyRef ContentAddress
}

func (ev *ContributionRaisedEvent) Kind() EventKind        { return ContributionRaised }
func (ev *ContributionRaisedEvent) Refs() []ContentAddress { return []ContentAddress{ev.BountyRef} }

func (ev *ContributionRaisedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// SubmissionPostedEvent is emitted when work is submitted for a bounty.
type SubmissionPostedEvent struct {
	ID            uint64
	BountyID      uint64
	Amount        *big.Int
	BountyRef     ContentAddress
	SubmissionRef ContentAddress
}

func (ev *SubmissionPostedEvent) Kind() EventKind { return SubmissionPosted }
func (ev *SubmissionPostedEvent) Refs() []ContentAddress {
	return []ContentAddress{ev.BountyRef, ev.SubmissionRef}
}

func (ev *SubmissionPostedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}

// PaymentExecutedEvent is emitted when a submission is approved and paid.
// NewTotal is what is left on the bounty after the payment.
type PaymentExecutedEvent struct {
	SubmissionID  uint64
	BountyID      uint64
	Amount        *big.Int
	NewTotal      *big.Int
	BountyRef     ContentAddress
	SubmissionRef ContentAddress
}

func (ev *PaymentExecutedEvent) Kind() EventKind { return PaymentExecuted }
func (ev *PaymentExecutedEvent) Refs() []ContentAddress {
	return []ContentAddress{ev.BountyRef, ev.SubmissionRef}
}

func (ev *PaymentExecutedEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}
