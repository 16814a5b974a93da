package reconciler

import (
	"errors"
	"fmt"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

var ErrMissingDocument = errors.New("referenced document not resolved")

func ErrMissingRef(kind agreement.EventKind, addr agreement.ContentAddress) error {
	return fmt.Errorf("%v event references %s: %w", kind, addr.Hex(), ErrMissingDocument)
}

func ErrUnknownEvent(ev agreement.Event) error {
	return fmt.Errorf("unknown event type %T", ev)
}
