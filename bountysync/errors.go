package bountysync

import (
	"errors"
	"fmt"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

var (
	ErrApplierStopped = errors.New("applier stopped")
	ErrEmptyItem      = errors.New("subscription yielded no event")
)

func ErrStartup(kind agreement.EventKind, err error) error {
	return fmt.Errorf("failed to open %v subscription: %w", kind, err)
}

func ErrUnknownIntent(in agreement.MutationIntent) error {
	return fmt.Errorf("unknown intent type %T", in)
}
