// Package pta scrapes xcpc scoreboards from the PTA (pintia) judge: it parses
// the judge payloads into canonical records and drives one ingestion run.
package pta

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pta-board-spider/pkg/batch"
	"github.com/Sternrassler/pta-board-spider/pkg/client"
	"github.com/Sternrassler/pta-board-spider/pkg/logging"
	"github.com/Sternrassler/pta-board-spider/pkg/model"
	"github.com/Sternrassler/pta-board-spider/pkg/ratelimit"
)

// BoardSettings are static contest fields the judge does not report.
type BoardSettings struct {
	// Name overrides the contest name when set.
	Name         string
	Penalty      time.Duration
	FrozenTime   time.Duration
	Organization string
}

// Config holds the spider configuration.
type Config struct {
	ContestID string
	Board     BoardSettings
	Retry     client.RetryConfig
	Batch     batch.Config

	// Throttle is shared with the client so 429 responses lengthen batch pauses.
	Throttle *ratelimit.Tracker
}

// Spider runs the ingestion pipeline for one contest and owns its results.
type Spider struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger

	contest     *model.Contest
	teams       model.Teams
	submissions model.Submissions
}

// NewSpider creates a spider fetching through fetcher.
func NewSpider(fetcher Fetcher, cfg Config) *Spider {
	return &Spider{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("spider"),
	}
}

// Run fetches the contest, its teams and its submissions. With fetchRuns the
// full submission list of every team is fetched; otherwise submissions are
// synthesized from the rank snapshot. Results are installed only when the
// whole run succeeds.
func (s *Spider) Run(ctx context.Context, fetchRuns bool) error {
	start := time.Now()
	runID := uuid.NewString()
	logger := logging.WithRun(s.logger, s.config.ContestID, runID)

	logger.Info().Bool("fetch_runs", fetchRuns).Msg("Starting spider run")

	raw, err := s.fetcher.Fetch(ctx, s.config.ContestID, ResourceGroups)
	if err != nil {
		return fmt.Errorf("fetch groups: %w", err)
	}
	groups, err := ParseGroups(raw)
	if err != nil {
		return err
	}

	raw, err = s.fetcher.Fetch(ctx, s.config.ContestID, ResourceRankings)
	if err != nil {
		return fmt.Errorf("fetch rank snapshot: %w", err)
	}
	rank, err := DecodeRank(raw)
	if err != nil {
		return err
	}
	contest, problems, err := ParseContest(rank)
	if err != nil {
		return err
	}
	contest.Group = groups
	s.applySettings(contest)

	teams, order, err := ParseTeams(rank)
	if err != nil {
		return err
	}

	logger.Info().
		Int("problems", contest.ProblemQuantity).
		Int("teams", len(teams)).
		Int("groups", len(groups)).
		Msg("Parsed rank snapshot")

	var runs model.Submissions
	if fetchRuns {
		batchCfg := s.config.Batch
		if batchCfg.Pacer == nil {
			batchCfg.Pacer = ratelimit.NewPacer(batchCfg.BatchDelay, batchCfg.MaxBatchDelay, s.config.Throttle, logger)
		}
		teamRuns := NewTeamRunFetcher(s.fetcher, s.config.ContestID, problems, s.config.Retry, logger)
		runs, err = batch.NewFetcher(teamRuns, batchCfg, logger).FetchAll(ctx, order)
		if err != nil {
			return fmt.Errorf("fetch team submissions: %w", err)
		}
	} else {
		runs, err = SynthesizeSubmissions(rank, contest, problems)
		if err != nil {
			return fmt.Errorf("synthesize submissions: %w", err)
		}
	}

	s.contest = contest
	s.teams = teams
	s.submissions = runs

	logger.Info().
		Int("submissions", len(runs)).
		Dur("duration", time.Since(start)).
		Msg("Spider run complete")

	return nil
}

func (s *Spider) applySettings(contest *model.Contest) {
	settings := s.config.Board
	if settings.Name != "" {
		contest.ContestName = settings.Name
	}
	contest.Penalty = int64(settings.Penalty / time.Second)
	contest.FrozenTime = int64(settings.FrozenTime / time.Second)
	contest.Organization = settings.Organization
}

// Board returns the results of the last successful run. Contest is nil
// before the first successful run.
func (s *Spider) Board() *model.Board {
	submissions := s.submissions
	if submissions == nil {
		submissions = model.Submissions{}
	}
	teams := s.teams
	if teams == nil {
		teams = model.Teams{}
	}
	return &model.Board{
		ContestID:   s.config.ContestID,
		Contest:     s.contest,
		Teams:       teams,
		Submissions: submissions,
	}
}
