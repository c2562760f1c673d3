package pta

import (
	"context"
	"errors"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/pta-board-spider/pkg/client"
	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

// Fetcher retrieves a contest-relative judge resource as raw JSON.
// *client.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, contestID, relativePath string) ([]byte, error)
}

// TeamRunFetcher fetches and parses the submission list of single teams,
// retrying transient failures.
type TeamRunFetcher struct {
	fetcher   Fetcher
	contestID string
	problems  ProblemIndex
	retry     client.RetryConfig
	logger    zerolog.Logger
}

// NewTeamRunFetcher creates a fetcher for one contest and problem set.
func NewTeamRunFetcher(fetcher Fetcher, contestID string, problems ProblemIndex, retry client.RetryConfig, logger zerolog.Logger) *TeamRunFetcher {
	return &TeamRunFetcher{
		fetcher:   fetcher,
		contestID: contestID,
		problems:  problems,
		retry:     retry,
		logger:    logger,
	}
}

// TeamSubmissionsPath returns the resource path of a team's submission list.
func TeamSubmissionsPath(teamID string) string {
	return ResourceTeamSubmissions + "?team_fid=" + url.QueryEscape(teamID)
}

// FetchTeamSubmissions returns all submissions of teamID. Each attempt
// fetches and parses; an unknown problem is never retried.
func (f *TeamRunFetcher) FetchTeamSubmissions(ctx context.Context, teamID string) (model.Submissions, error) {
	path := TeamSubmissionsPath(teamID)
	logger := f.logger.With().Str("team_id", teamID).Logger()

	var runs model.Submissions
	err := client.Retry(ctx, f.retry, logger, func(attempt int) error {
		raw, err := f.fetcher.Fetch(ctx, f.contestID, path)
		if err != nil {
			return err
		}
		parsed, err := ParseTeamSubmissions(raw, teamID, f.problems)
		if err != nil {
			var unknown *UnknownProblemError
			if errors.As(err, &unknown) {
				return client.Permanent(err)
			}
			return err
		}
		runs = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Int("submissions", len(runs)).Msg("Fetched team submissions")
	return runs, nil
}
