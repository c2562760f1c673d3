package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/pta-board-spider/pkg/model"
	"github.com/Sternrassler/pta-board-spider/pkg/ratelimit"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pta_batches_total",
		Help: "Total team batches by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pta_batch_duration_seconds",
		Help:    "Wall time of one team batch",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	teamFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pta_team_fetch_failures_total",
		Help: "Total teams whose submissions could not be fetched",
	})

	teamFetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pta_team_fetches_in_flight",
		Help: "Team submission fetches currently running",
	})
)

// Config holds batch fetcher configuration.
type Config struct {
	// BatchSize is the number of teams fetched concurrently per wave.
	BatchSize int

	// BatchDelay is the base pause between waves.
	BatchDelay time.Duration

	// MaxBatchDelay caps the pause while the judge is throttling (0 = no cap).
	MaxBatchDelay time.Duration

	// Pacer overrides the default pause between waves.
	Pacer Pacer

	// OnBatch is called before each wave is started.
	OnBatch func(index, size int)
}

// DefaultConfig returns the pacing used against pintia.cn.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		BatchDelay:    time.Second,
		MaxBatchDelay: 30 * time.Second,
	}
}

// TeamFetcher fetches the complete submission list of one team.
type TeamFetcher interface {
	FetchTeamSubmissions(ctx context.Context, teamID string) (model.Submissions, error)
}

// Pacer blocks between waves.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Fetcher runs team fetches in paced waves.
type Fetcher struct {
	fetcher TeamFetcher
	pacer   Pacer
	config  Config
	logger  zerolog.Logger
}

// NewFetcher creates a new batch fetcher.
func NewFetcher(fetcher TeamFetcher, config Config, logger zerolog.Logger) *Fetcher {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}

	pacer := config.Pacer
	if pacer == nil {
		pacer = ratelimit.NewPacer(config.BatchDelay, config.MaxBatchDelay, nil, logger)
	}

	return &Fetcher{
		fetcher: fetcher,
		pacer:   pacer,
		config:  config,
		logger:  logger,
	}
}

// Partition splits ids into consecutive chunks of at most size, preserving order.
func Partition(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// FetchAll fetches the submissions of every team and returns them stably
// sorted by timestamp. Any team failure fails the whole call and no partial
// result is returned.
func (f *Fetcher) FetchAll(ctx context.Context, teamIDs []string) (model.Submissions, error) {
	start := time.Now()
	batches := Partition(teamIDs, f.config.BatchSize)

	f.logger.Info().
		Int("teams", len(teamIDs)).
		Int("batches", len(batches)).
		Int("batch_size", f.config.BatchSize).
		Msg("Starting team submission fetch")

	all := make(model.Submissions, 0)
	processed := 0
	for i, teams := range batches {
		if i > 0 {
			if err := f.pacer.Wait(ctx); err != nil {
				return nil, fmt.Errorf("pause before batch %d: %w", i+1, err)
			}
		}
		if f.config.OnBatch != nil {
			f.config.OnBatch(i, len(teams))
		}

		results, err := f.fetchBatch(ctx, teams)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		for _, runs := range results {
			all = append(all, runs...)
		}

		processed += len(teams)
		f.logger.Info().
			Int("batch", i+1).
			Int("processed", processed).
			Int("total", len(teamIDs)).
			Msg("Batch complete")
	}

	all.SortByTimestamp()

	f.logger.Info().
		Int("teams", len(teamIDs)).
		Int("submissions", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return all, nil
}

// fetchBatch fetches one wave concurrently. Siblings of a failed team are not
// cancelled; the wave always runs to completion before returning.
func (f *Fetcher) fetchBatch(ctx context.Context, teams []string) ([]model.Submissions, error) {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	results := make([]model.Submissions, len(teams))

	var g errgroup.Group
	g.SetLimit(len(teams))
	for i, teamID := range teams {
		g.Go(func() error {
			teamFetchesInFlight.Inc()
			defer teamFetchesInFlight.Dec()

			runs, err := f.fetcher.FetchTeamSubmissions(ctx, teamID)
			if err != nil {
				teamFetchFailures.Inc()
				f.logger.Error().
					Err(err).
					Str("team_id", teamID).
					Msg("Team submission fetch failed")
				return fmt.Errorf("team %s: %w", teamID, err)
			}
			results[i] = runs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		batchesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	batchesTotal.WithLabelValues("success").Inc()
	return results, nil
}
