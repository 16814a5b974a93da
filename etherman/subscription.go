package etherman

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// LogSubscription streams the logs of a single bounty event kind.
// Next must be called from one goroutine only; Close may be called from any.
type LogSubscription struct {
	id      string
	kind    agreement.EventKind
	sub     ethereum.Subscription
	logs    <-chan types.Log
	backlog []types.Log
	onLog   func(agreement.EventKind, uint64)

	done      chan struct{}
	closeOnce sync.Once
}

func newLogSubscription(
	kind agreement.EventKind,
	sub ethereum.Subscription,
	logs <-chan types.Log,
	backlog []types.Log,
	onLog func(agreement.EventKind, uint64),
) *LogSubscription {
	s := &LogSubscription{
		id:      uuid.NewString(),
		kind:    kind,
		sub:     sub,
		logs:    logs,
		backlog: backlog,
		onLog:   onLog,
		done:    make(chan struct{}),
	}
	logger.WithFields(logger.Fields{
		"kind": kind,
		"sub":  s.id,
	}).Debug("log subscription opened")
	return s
}

func (s *LogSubscription) ID() string {
	return s.id
}

// Next implements agreement.Subscription.
func (s *LogSubscription) Next(ctx context.Context) (*agreement.RawEvent, error) {
	select {
	case <-s.done:
		return nil, agreement.ErrStreamClosed
	default:
	}

	if len(s.backlog) > 0 {
		vlog := s.backlog[0]
		s.backlog = s.backlog[1:]
		return s.deliver(vlog)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, agreement.ErrStreamClosed
	case err := <-s.sub.Err():
		if err != nil {
			logger.WithFields(logger.Fields{
				"kind":  s.kind,
				"sub":   s.id,
				"error": err,
			}).Warn("log subscription dropped by node")
		}
		s.Close()
		return nil, agreement.ErrStreamClosed
	case vlog := <-s.logs:
		return s.deliver(vlog)
	}
}

// Close implements agreement.Subscription.
func (s *LogSubscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sub.Unsubscribe()
		logger.WithFields(logger.Fields{
			"kind": s.kind,
			"sub":  s.id,
		}).Debug("log subscription closed")
	})
}

func (s *LogSubscription) deliver(vlog types.Log) (*agreement.RawEvent, error) {
	if vlog.Removed {
		return nil, &RemovedLogError{TxHash: vlog.TxHash, LogIndex: vlog.Index}
	}
	if s.onLog != nil {
		s.onLog(s.kind, vlog.BlockNumber)
	}
	return RawEventFromLog(s.kind, vlog), nil
}

// RawEventFromLog copies a node log into a RawEvent of the given kind.
func RawEventFromLog(kind agreement.EventKind, vlog types.Log) *agreement.RawEvent {
	data := make([]byte, len(vlog.Data))
	copy(data, vlog.Data)
	topics := make([]ethcommon.Hash, len(vlog.Topics))
	copy(topics, vlog.Topics)

	return &agreement.RawEvent{
		Kind:        kind,
		BlockNumber: vlog.BlockNumber,
		TxHash:      vlog.TxHash,
		LogIndex:    vlog.Index,
		Removed:     vlog.Removed,
		Topics:      topics,
		Data:        data,
	}
}
