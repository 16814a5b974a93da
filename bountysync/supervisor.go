// Package bountysync keeps the issue tracker in step with the bounty
// contract. A Supervisor runs one Dispatcher per event kind; every
// dispatcher hands its writes to a shared Applier.
package bountysync

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

type Supervisor struct {
	cfg    *Config
	source agreement.EventSource

	applier     *Applier
	dispatchers []*Dispatcher

	mu   sync.Mutex
	subs map[agreement.EventKind]agreement.Subscription
}

// NewSupervisor wires one dispatcher per event kind. recorder may be nil.
func NewSupervisor(
	cfg *Config,
	source agreement.EventSource,
	decoder agreement.Decoder,
	resolver agreement.Resolver,
	api agreement.CommentAPI,
	recorder FailureRecorder,
) *Supervisor {
	applier := NewApplier(api, cfg)

	s := &Supervisor{
		cfg:     cfg,
		source:  source,
		applier: applier,
		subs:    make(map[agreement.EventKind]agreement.Subscription),
	}
	for _, kind := range agreement.AllEventKinds() {
		s.dispatchers = append(s.dispatchers, NewDispatcher(kind, decoder, resolver, applier, recorder))
	}
	return s
}

// Run opens every subscription, then processes events until ctx is done.
// Failing to open any subscription is fatal: the ones already opened are
// closed and the error returned.
func (s *Supervisor) Run(ctx context.Context) error {
	opened := make([]agreement.Subscription, 0, len(s.dispatchers))
	for _, d := range s.dispatchers {
		sub, err := s.source.Subscribe(ctx, d.Kind())
		if err != nil {
			for _, sub := range opened {
				sub.Close()
			}
			logger.WithError(err).WithField("kind", d.Kind().String()).Error("failed to subscribe")
			return ErrStartup(d.Kind(), err)
		}
		opened = append(opened, sub)
		s.setSub(d.Kind(), sub)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.applier.Start(ctx)
	}()

	for i, d := range s.dispatchers {
		wg.Add(1)
		go func(d *Dispatcher, sub agreement.Subscription) {
			defer wg.Done()
			s.loop(ctx, d, sub)
		}(d, opened[i])
	}

	logger.Info("bounty sync running")
	<-ctx.Done()

	s.closeAll()
	wg.Wait()
	logger.Info("bounty sync stopped")
	return ctx.Err()
}

// loop restarts the dispatcher of one kind on a fresh subscription every
// time its stream ends, independently of the other kinds.
func (s *Supervisor) loop(ctx context.Context, d *Dispatcher, sub agreement.Subscription) {
	for {
		d.Run(ctx, sub)
		sub.Close()
		s.setSub(d.Kind(), nil)
		if ctx.Err() != nil {
			return
		}

		sub = s.resubscribe(ctx, d.Kind())
		if sub == nil {
			return
		}
		d.stats.update(func(st *KindStatus) {
			st.Restarts++
			st.SubscriptionID = sub.ID()
		})
	}
}

// resubscribe retries until it succeeds or ctx is done, in which case it
// returns nil.
func (s *Supervisor) resubscribe(ctx context.Context, kind agreement.EventKind) agreement.Subscription {
	for {
		sub, err := s.source.Subscribe(ctx, kind)
		if err == nil {
			logger.WithFields(logger.Fields{
				"kind":         kind.String(),
				"subscription": sub.ID(),
			}).Info("resubscribed")
			s.setSub(kind, sub)
			if ctx.Err() != nil {
				sub.Close()
				return nil
			}
			return sub
		}

		logger.WithError(err).WithFields(logger.Fields{
			"kind":    kind.String(),
			"backoff": s.cfg.backoff().String(),
		}).Warn("failed to resubscribe")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.backoff()):
		}
	}
}

func (s *Supervisor) setSub(kind agreement.EventKind, sub agreement.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub == nil {
		delete(s.subs, kind)
		return
	}
	s.subs[kind] = sub
}

func (s *Supervisor) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, sub := range s.subs {
		sub.Close()
		delete(s.subs, kind)
	}
}

// Snapshot returns the status of every kind, in event kind order.
func (s *Supervisor) Snapshot() []KindStatus {
	statuses := make([]KindStatus, 0, len(s.dispatchers))
	for _, d := range s.dispatchers {
		statuses = append(statuses, d.Status())
	}
	return statuses
}
