package bountysync

import (
	"sync"
	"time"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// Stage is where a dispatcher is in the handling of one event.
type Stage int

const (
	Running Stage = iota
	Decoding
	Resolving
	Reconciling
	Applying
	Stopped
)

func (s Stage) String() string {
	switch s {
	case Running:
		return "Running"
	case Decoding:
		return "Decoding"
	case Resolving:
		return "Resolving"
	case Reconciling:
		return "Reconciling"
	case Applying:
		return "Applying"
	case Stopped:
		return "Stopped"
	}
	return "Unknown"
}

// Failure reasons, as recorded in logs and the journal.
const (
	ReasonStream          = "stream"
	ReasonDecode          = "decode"
	ReasonNotYetAvailable = "not-yet-available"
	ReasonMalformed       = "malformed"
	ReasonReconcile       = "reconcile"
	ReasonApply           = "apply"
)

// KindStatus is the state and counters of one event kind.
type KindStatus struct {
	Kind           string    `json:"kind"`
	Stage          string    `json:"stage"`
	SubscriptionID string    `json:"subscription"`
	Received       uint64    `json:"received"`
	Applied        uint64    `json:"applied"`
	Failures       uint64    `json:"failures"`
	DecodeFailures uint64    `json:"decodeFailures"`
	NotYetAvail    uint64    `json:"notYetAvailable"`
	Malformed      uint64    `json:"malformed"`
	ApplyFailures  uint64    `json:"applyFailures"`
	Restarts       uint64    `json:"restarts"`
	LastBlock      uint64    `json:"lastBlock"`
	LastError      string    `json:"lastError,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// kindStats is the shared, locked KindStatus of one dispatcher.
type kindStats struct {
	mu     sync.Mutex
	status KindStatus
}

func newKindStats(kind agreement.EventKind) *kindStats {
	return &kindStats{status: KindStatus{
		Kind:      kind.String(),
		Stage:     Stopped.String(),
		UpdatedAt: time.Now(),
	}}
}

func (ks *kindStats) update(fn func(st *KindStatus)) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	fn(&ks.status)
	ks.status.UpdatedAt = time.Now()
}

func (ks *kindStats) setStage(stage Stage) {
	ks.update(func(st *KindStatus) { st.Stage = stage.String() })
}

func (ks *kindStats) received(subID string, block uint64) {
	ks.update(func(st *KindStatus) {
		st.Received++
		st.SubscriptionID = subID
		if block > st.LastBlock {
			st.LastBlock = block
		}
	})
}

func (ks *kindStats) failed(reason string, err error) {
	ks.update(func(st *KindStatus) {
		st.Failures++
		st.LastError = err.Error()
		switch reason {
		case ReasonDecode:
			st.DecodeFailures++
		case ReasonNotYetAvailable:
			st.NotYetAvail++
		case ReasonMalformed:
			st.Malformed++
		case ReasonApply:
			st.ApplyFailures++
		}
	})
}

func (ks *kindStats) snapshot() KindStatus {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.status
}
