package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	batchPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pta_batch_pauses_total",
		Help: "Total number of pauses between team batches",
	})

	batchPauseSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pta_batch_pause_seconds",
		Help:    "Length of pauses between team batches",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Pacer pauses between batches. The pause is cancellable and grows while the
// judge keeps answering 429.
type Pacer struct {
	delay    time.Duration
	maxDelay time.Duration
	tracker  *Tracker
	logger   zerolog.Logger
}

// NewPacer creates a pacer with a base delay. tracker may be nil.
func NewPacer(delay, maxDelay time.Duration, tracker *Tracker, logger zerolog.Logger) *Pacer {
	return &Pacer{
		delay:    delay,
		maxDelay: maxDelay,
		tracker:  tracker,
		logger:   logger,
	}
}

// Wait sleeps for the current pause or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	state := p.tracker.Take()
	pause := state.Pause(p.delay, p.maxDelay)

	if state.NeedsBackoff() {
		p.logger.Warn().
			Int("throttled", state.Throttled).
			Dur("pause", pause).
			Msg("Judge throttling detected - extending batch pause")
	} else {
		p.logger.Debug().Dur("pause", pause).Msg("Pausing before next batch")
	}

	batchPausesTotal.Inc()
	batchPauseSeconds.Observe(pause.Seconds())

	if pause <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
