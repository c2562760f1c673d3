// Package ratelimit keeps the spider polite towards the judge: a token-bucket
// request limiter, a throttle tracker fed by 429 responses, and the pacer that
// pauses between team batches.
package ratelimit

import (
	"time"
)

// Thresholds for pacing decisions.
const (
	// ThrottleThresholdWarning is the number of 429 responses since the last
	// pause at which the next pause is extended.
	ThrottleThresholdWarning = 1

	// MaxPauseDoublings bounds how often the base pause is doubled.
	MaxPauseDoublings = 5
)

// State is a snapshot of observed throttling.
type State struct {
	// Throttled is the number of 429 responses since the previous snapshot.
	Throttled int

	// Total is the number of 429 responses since the tracker was created.
	Total int64

	// LastThrottle is when the most recent 429 was observed.
	LastThrottle time.Time
}

// NeedsBackoff returns true if the next pause should be extended.
func (s State) NeedsBackoff() bool {
	return s.Throttled >= ThrottleThresholdWarning
}

// Pause returns the pause to apply before the next batch: base when the judge
// is healthy, otherwise base doubled once per throttled response (bounded by
// MaxPauseDoublings) and capped at max. max <= 0 means no cap.
func (s State) Pause(base, max time.Duration) time.Duration {
	if !s.NeedsBackoff() || base <= 0 {
		return base
	}

	doublings := s.Throttled
	if doublings > MaxPauseDoublings {
		doublings = MaxPauseDoublings
	}
	pause := base << doublings
	if max > 0 && pause > max {
		return max
	}
	return pause
}
