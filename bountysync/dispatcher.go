package bountysync

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/common"
	"github.com/sunshine-protocol/bounty-bot/journal"
	"github.com/sunshine-protocol/bounty-bot/reconciler"
)

// FailureRecorder keeps dropped items for later replay.
type FailureRecorder interface {
	Record(ctx context.Context, f *journal.Failure) error
}

// Dispatcher drives the events of one kind from a subscription through
// decode, resolve, reconcile and apply, one event at a time.
type Dispatcher struct {
	kind     agreement.EventKind
	decoder  agreement.Decoder
	resolver agreement.Resolver
	applier  IntentApplier
	recorder FailureRecorder

	stats *kindStats
}

// NewDispatcher returns a dispatcher for kind. recorder may be nil.
func NewDispatcher(
	kind agreement.EventKind,
	decoder agreement.Decoder,
	resolver agreement.Resolver,
	applier IntentApplier,
	recorder FailureRecorder,
) *Dispatcher {
	return &Dispatcher{
		kind:     kind,
		decoder:  decoder,
		resolver: resolver,
		applier:  applier,
		recorder: recorder,
		stats:    newKindStats(kind),
	}
}

func (d *Dispatcher) Kind() agreement.EventKind {
	return d.kind
}

func (d *Dispatcher) Status() KindStatus {
	return d.stats.snapshot()
}

// Run consumes sub until the stream ends (nil) or ctx is done (ctx.Err()).
// Per-item failures are logged, journaled and skipped.
func (d *Dispatcher) Run(ctx context.Context, sub agreement.Subscription) error {
	logger.WithFields(logger.Fields{
		"kind":         d.kind.String(),
		"subscription": sub.ID(),
	}).Info("dispatcher running")
	d.stats.update(func(st *KindStatus) { st.SubscriptionID = sub.ID() })
	defer d.stats.setStage(Stopped)

	for {
		d.stats.setStage(Running)

		raw, err := sub.Next(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, agreement.ErrStreamClosed) {
			logger.WithFields(logger.Fields{
				"kind":         d.kind.String(),
				"subscription": sub.ID(),
			}).Warn("event stream ended")
			return nil
		}
		if err != nil {
			d.fail(ctx, sub.ID(), raw, Running, ReasonStream, err, nil)
			continue
		}

		if err := d.Process(ctx, sub.ID(), raw); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Process carries one raw event through the pipeline. The returned error is
// the item failure, already logged and journaled.
func (d *Dispatcher) Process(ctx context.Context, subID string, raw *agreement.RawEvent) error {
	if raw == nil {
		d.fail(ctx, subID, nil, Running, ReasonStream, ErrEmptyItem, nil)
		return ErrEmptyItem
	}
	d.stats.received(subID, raw.BlockNumber)

	d.stats.setStage(Decoding)
	ev, err := d.decoder.Decode(raw, d.kind)
	if err != nil {
		d.fail(ctx, subID, raw, Decoding, ReasonDecode, err, nil)
		return err
	}

	d.stats.setStage(Resolving)
	docs, err := d.resolve(ctx, ev)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		reason := ReasonNotYetAvailable
		if agreement.IsMalformed(err) {
			reason = ReasonMalformed
		}
		d.fail(ctx, subID, raw, Resolving, reason, err, nil)
		return err
	}

	d.stats.setStage(Reconciling)
	intents, err := reconciler.Reconcile(ev, docs)
	if err != nil {
		d.fail(ctx, subID, raw, Reconciling, ReasonReconcile, err, nil)
		return err
	}

	d.stats.setStage(Applying)
	for _, in := range intents {
		if err := d.applier.Apply(ctx, in); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// the rest of the event is dropped with it
			d.fail(ctx, subID, raw, Applying, ReasonApply, err, in)
			return err
		}
	}

	d.stats.update(func(st *KindStatus) { st.Applied++ })
	logger.WithFields(logger.Fields{
		"kind":    d.kind.String(),
		"txHash":  common.ShortHash(raw.TxHash),
		"block":   raw.BlockNumber,
		"intents": len(intents),
	}).Debug("event applied")
	return nil
}

// resolve fetches every document the event refers to.
func (d *Dispatcher) resolve(ctx context.Context, ev agreement.Event) (agreement.ResolvedDocs, error) {
	docs := make(agreement.ResolvedDocs)
	for _, addr := range ev.Refs() {
		if _, ok := docs[addr]; ok {
			continue
		}
		rec, err := d.resolver.Resolve(ctx, addr)
		if err != nil {
			return nil, err
		}
		docs[addr] = rec
	}
	return docs, nil
}

func (d *Dispatcher) fail(
	ctx context.Context,
	subID string,
	raw *agreement.RawEvent,
	stage Stage,
	reason string,
	err error,
	in agreement.MutationIntent,
) {
	d.stats.failed(reason, err)

	f := &journal.Failure{
		Kind:           d.kind.String(),
		Stage:          stage.String(),
		Reason:         reason,
		SubscriptionID: subID,
		Error:          err.Error(),
		Intent:         journal.EncodeIntent(in),
	}
	if raw != nil {
		f.TxHash = raw.TxHash
		f.LogIndex = raw.LogIndex
		f.BlockNumber = raw.BlockNumber
	}

	fields := logger.Fields{
		"kind":         f.Kind,
		"subscription": subID,
		"txHash":       common.ShortHash(f.TxHash),
		"logIndex":     f.LogIndex,
		"block":        f.BlockNumber,
		"stage":        f.Stage,
		"reason":       reason,
	}
	if f.Intent != "" {
		fields["intent"] = f.Intent
	}
	entry := logger.WithFields(fields).WithError(err)
	if reason == ReasonMalformed {
		entry.Error("malformed off-chain document, event dropped")
	} else {
		entry.Warn("event dropped")
	}

	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(ctx, f); err != nil {
		logger.WithError(err).WithField("kind", f.Kind).Error("failed to journal failure")
	}
}
