package offchain

import (
	"errors"
	"fmt"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrNoGateway     = errors.New("no gateway configured")
)

func ErrDigestMismatch(want, got agreement.ContentAddress) error {
	return fmt.Errorf("digest mismatch: want %s, got %s", want.Hex(), got.Hex())
}

func ErrInvalidRecord(reason string) error {
	return fmt.Errorf("invalid bounty record: %s", reason)
}

func ErrGatewayStatus(code int) error {
	return fmt.Errorf("gateway answered %d", code)
}
