package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var throttledResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pta_throttled_responses_total",
	Help: "Total number of 429 responses returned by the judge",
})

// Tracker records throttled responses from concurrent fetches.
// A nil *Tracker is valid and records nothing.
type Tracker struct {
	mu           sync.Mutex
	throttled    int
	total        int64
	lastThrottle time.Time
}

// NewTracker creates a new throttle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordThrottle notes one 429 response.
func (t *Tracker) RecordThrottle() {
	if t == nil {
		return
	}

	t.mu.Lock()
	t.throttled++
	t.total++
	t.lastThrottle = time.Now()
	t.mu.Unlock()

	throttledResponsesTotal.Inc()
}

// Take returns the current state and resets the per-pause counter.
func (t *Tracker) Take() State {
	if t == nil {
		return State{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state := State{
		Throttled:    t.throttled,
		Total:        t.total,
		LastThrottle: t.lastThrottle,
	}
	t.throttled = 0
	return state
}
