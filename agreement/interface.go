package agreement

import (
	"context"
	"math/big"
)

// EventSource opens event streams on the chain.
type EventSource interface {
	// Subscribe opens a live stream that only carries events of the given kind.
	Subscribe(ctx context.Context, kind EventKind) (Subscription, error)
}

// Subscription is one live stream of a single event kind.
type Subscription interface {
	// Next blocks until the next raw event arrives.
	// ErrStreamClosed means the stream is gone for good (source closed or
	// Close was called). Any other error concerns a single item only and
	// the caller may keep calling Next.
	Next(ctx context.Context) (*RawEvent, error)

	// Close marks the subscription inactive. Safe to call more than once.
	Close()

	// ID identifies the subscription session in logs.
	ID() string
}

// Decoder turns a raw log into a typed event.
type Decoder interface {
	Decode(raw *RawEvent, kind EventKind) (Event, error)
}

// Resolver fetches off-chain documents by content address.
type Resolver interface {
	Resolve(ctx context.Context, addr ContentAddress) (BountyRecord, error)
}

// CommentAPI is what the bot needs from the issue tracker.
// Every call must be safe to repeat with identical arguments.
type CommentAPI interface {
	CreateBountyComment(ctx context.Context, issue BountyRecord, bountyID uint64, amount *big.Int) error
	UpdateBountyComment(ctx context.Context, issue BountyRecord, bountyID uint64, newTotal *big.Int) error
	CreateSubmissionComment(ctx context.Context, bounty, submission BountyRecord, bountyID, submissionID uint64, amount *big.Int) error
	ApproveSubmissionComment(ctx context.Context, bounty, submission BountyRecord, bountyID, submissionID uint64, amount, newTotal *big.Int) error
}
