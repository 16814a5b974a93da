package bountysync

import "time"

const (
	defaultResubscribeBackoff = 2 * time.Second
	defaultApplyQueueSize     = 16
	defaultApplyTimeout       = 30 * time.Second
)

type Config struct {
	// ResubscribeBackoff is the wait between failed resubscribe attempts.
	ResubscribeBackoff time.Duration

	// ApplyQueueSize is the number of intents that can wait for the applier.
	ApplyQueueSize int

	// ApplyTimeout bounds a single write to the issue tracker.
	ApplyTimeout time.Duration
}

func (cfg *Config) backoff() time.Duration {
	if cfg == nil || cfg.ResubscribeBackoff <= 0 {
		return defaultResubscribeBackoff
	}
	return cfg.ResubscribeBackoff
}

func (cfg *Config) queueSize() int {
	if cfg == nil || cfg.ApplyQueueSize <= 0 {
		return defaultApplyQueueSize
	}
	return cfg.ApplyQueueSize
}

func (cfg *Config) applyTimeout() time.Duration {
	if cfg == nil || cfg.ApplyTimeout <= 0 {
		return defaultApplyTimeout
	}
	return cfg.ApplyTimeout
}
