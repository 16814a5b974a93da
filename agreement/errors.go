package agreement

import (
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by Subscription.Next once the stream has ended.
// It is a restart signal, not a failure.
var ErrStreamClosed = errors.New("event stream closed")

// DecodeError reports a raw event that does not match its expected shape.
type DecodeError struct {
	Kind   EventKind
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %v event: %s", e.Kind, e.Reason)
}

func ErrDecode(kind EventKind, format string, args ...interface{}) error {
	return &DecodeError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// ResolveReason classifies a resolution failure.
type ResolveReason int

const (
	// NotYetAvailable is transient: the document may show up later.
	NotYetAvailable ResolveReason = iota
	// Malformed is permanent for that address.
	Malformed
)

func (r ResolveReason) String() string {
	if r == Malformed {
		return "malformed"
	}
	return "not yet available"
}

// ResolveError reports a content address that could not be turned into a
// BountyRecord.
type ResolveError struct {
	Address ContentAddress
	Reason  ResolveReason
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("document %s %v", e.Address.Hex(), e.Reason)
	}
	return fmt.Sprintf("document %s %v: %v", e.Address.Hex(), e.Reason, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func ErrNotYetAvailable(addr ContentAddress, err error) error {
	return &ResolveError{Address: addr, Reason: NotYetAvailable, Err: err}
}

func ErrMalformed(addr ContentAddress, err error) error {
	return &ResolveError{Address: addr, Reason: Malformed, Err: err}
}

// IsNotYetAvailable reports whether err is a transient resolve failure.
func IsNotYetAvailable(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Reason == NotYetAvailable
}

// IsMalformed reports whether err is a permanent resolve failure.
func IsMalformed(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Reason == Malformed
}

// ApplyError reports a failed call against the issue tracker.
type ApplyError struct {
	Intent MutationIntent
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply %s on %v: %v", e.Intent.Name(), e.Intent.Target(), e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
