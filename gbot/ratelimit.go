package gbot

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateLimitTracker holds GitHub's own view of the quota, read from response
// headers. Once the quota is spent every request waits for the reset.
type rateLimitTracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool
	now       func() time.Time
}

func newRateLimitTracker() *rateLimitTracker {
	return &rateLimitTracker{now: time.Now}
}

// update records X-RateLimit-Remaining and X-RateLimit-Reset.
func (tracker *rateLimitTracker) update(header http.Header) {
	remainingStr := header.Get("X-RateLimit-Remaining")
	resetStr := header.Get("X-RateLimit-Reset")
	if remainingStr == "" || resetStr == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.remaining = remaining
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// block holds every request back for d, the backoff of a rate limited answer.
func (tracker *rateLimitTracker) block(d time.Duration) {
	if d <= 0 {
		return
	}
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	until := tracker.now().Add(d)
	if tracker.known && tracker.remaining <= 0 && tracker.reset.After(until) {
		return
	}
	tracker.remaining = 0
	tracker.reset = until
	tracker.known = true
}

// wait sleeps until the reset when the quota is spent, or until ctx is done.
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}
	d := tracker.reset.Sub(tracker.now())
	tracker.mu.Unlock()

	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter is the backoff a rate limited answer asks for: Retry-After for
// secondary limits, X-RateLimit-Reset for the primary one.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if s := header.Get("Retry-After"); s != "" {
		if seconds, err := strconv.Atoi(s); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if s := header.Get("X-RateLimit-Reset"); s != "" {
		if resetUnix, err := strconv.ParseInt(s, 10, 64); err == nil {
			if d := time.Unix(resetUnix, 0).Sub(tracker.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}
