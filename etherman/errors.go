package etherman

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sunshine-protocol/bounty-bot/agreement"
)

func ErrUnknownEventKind(kind agreement.EventKind) error {
	return fmt.Errorf("no bounty event for kind %v", kind)
}

func ErrSubscribe(kind agreement.EventKind, err error) error {
	return fmt.Errorf("failed to subscribe to %v logs: %w", kind, err)
}

func ErrBackfill(kind agreement.EventKind, from uint64, err error) error {
	return fmt.Errorf("failed to backfill %v logs from block %d: %w", kind, from, err)
}

// RemovedLogError is a log that was reorged out after being announced.
type RemovedLogError struct {
	TxHash   common.Hash
	LogIndex uint
}

func (e *RemovedLogError) Error() string {
	return fmt.Sprintf("log %s:%d removed by reorg", e.TxHash.Hex(), e.LogIndex)
}
