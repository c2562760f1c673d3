package pta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/pta-board-spider/internal/testutil"
	"github.com/Sternrassler/pta-board-spider/pkg/batch"
	"github.com/Sternrassler/pta-board-spider/pkg/client"
	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

func setupContest(mock *testutil.MockJudge, teamCount int) {
	mock.SetGroups("c1", testutil.GroupsJSON(map[string]string{"g1": "Undergraduate"}))

	problems := []testutil.Problem{
		{ID: "p1", Label: "A", Balloon: "#ff0000"},
		{ID: "p2", Label: "B"},
	}
	teams := make([]testutil.RankTeam, 0, teamCount+1)
	for i := 0; i < teamCount; i++ {
		id := fmt.Sprintf("t%d", i)
		teams = append(teams, testutil.RankTeam{
			FID:    id,
			Name:   "Team " + id,
			School: "School",
			Groups: []string{"g1"},
			Details: map[string]testutil.Detail{
				"p1": {Status: "ACCEPTED", ValidSubmitCount: 2, AcceptTime: i, SubmitCountSnapshot: 2},
			},
		})
		mock.SetTeamSubmissions(id, testutil.SubmissionsJSON(
			testutil.Run{ID: id + "-1", ProblemID: "p1", Status: "WRONG_ANSWER", SubmitAt: contestStart.Add(time.Duration(i) * time.Minute)},
			testutil.Run{ID: id + "-2", ProblemID: "p1", Status: "ACCEPTED", SubmitAt: contestStart.Add(time.Duration(i+1) * time.Minute)},
		))
	}
	teams = append(teams, testutil.RankTeam{FID: "star", Name: "Star", Excluded: true})

	mock.SetRank("c1", testutil.RankJSON(contestStart, contestEnd, problems, teams))
}

func spiderConfig() Config {
	return Config{
		ContestID: "c1",
		Board: BoardSettings{
			Name:         "Provincial Contest",
			Penalty:      20 * time.Minute,
			FrozenTime:   time.Hour,
			Organization: "School",
		},
		Retry: fastRetry(),
		Batch: batch.Config{BatchSize: 3, BatchDelay: time.Millisecond},
	}
}

func TestSpider_RunFetchRuns(t *testing.T) {
	mock := testutil.NewMockJudge()
	defer mock.Close()
	setupContest(mock, 7)

	s := NewSpider(newJudgeClient(t, mock), spiderConfig())
	if err := s.Run(context.Background(), true); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	board := s.Board()
	if board.ContestID != "c1" {
		t.Errorf("ContestID = %q, want c1", board.ContestID)
	}

	contest := board.Contest
	if contest.ContestName != "Provincial Contest" {
		t.Errorf("ContestName = %q", contest.ContestName)
	}
	if contest.Penalty != 1200 || contest.FrozenTime != 3600 {
		t.Errorf("Penalty = %d, FrozenTime = %d, want 1200 and 3600", contest.Penalty, contest.FrozenTime)
	}
	if contest.Group["g1"] != "Undergraduate" {
		t.Errorf("Group = %v", contest.Group)
	}
	if contest.ProblemQuantity != 2 {
		t.Errorf("ProblemQuantity = %d, want 2", contest.ProblemQuantity)
	}

	if len(board.Teams) != 7 {
		t.Errorf("teams = %d, want 7", len(board.Teams))
	}
	if _, ok := board.Teams["star"]; ok {
		t.Error("excluded team must not be on the board")
	}
	if got := mock.GetTeamRequestCount("star"); got != 0 {
		t.Errorf("excluded team fetched %d times", got)
	}

	if len(board.Submissions) != 14 {
		t.Fatalf("submissions = %d, want 14", len(board.Submissions))
	}
	for i := 1; i < len(board.Submissions); i++ {
		if board.Submissions[i-1].Timestamp > board.Submissions[i].Timestamp {
			t.Fatalf("submissions not sorted at %d", i)
		}
	}
	if mock.MaxInFlight() > 3 {
		t.Errorf("max in flight = %d, want <= batch size 3", mock.MaxInFlight())
	}
}

func TestSpider_RunSynthesized(t *testing.T) {
	mock := testutil.NewMockJudge()
	defer mock.Close()
	setupContest(mock, 4)

	s := NewSpider(newJudgeClient(t, mock), spiderConfig())
	if err := s.Run(context.Background(), false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	board := s.Board()
	if len(board.Submissions) != 8 {
		t.Errorf("submissions = %d, want 8", len(board.Submissions))
	}
	for _, id := range []string{"t0", "t1", "t2", "t3"} {
		if got := mock.GetTeamRequestCount(id); got != 0 {
			t.Errorf("team %s fetched %d times without fetchRuns", id, got)
		}
	}

	accepted := 0
	for _, r := range board.Submissions {
		if r.Status == model.VerdictAccepted {
			accepted++
		}
	}
	if accepted != 4 {
		t.Errorf("accepted runs = %d, want 4", accepted)
	}
}

func TestSpider_RunFailureInstallsNothing(t *testing.T) {
	mock := testutil.NewMockJudge()
	defer mock.Close()
	setupContest(mock, 4)

	cfg := spiderConfig()
	cfg.Retry.MaxAttempts = 2
	for i := 0; i < cfg.Retry.MaxAttempts; i++ {
		mock.FailTeam("t2", testutil.NewServerErrorResponse())
	}

	s := NewSpider(newJudgeClient(t, mock), cfg)
	err := s.Run(context.Background(), true)
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetryExhausted", err)
	}

	board := s.Board()
	if board.Contest != nil {
		t.Error("contest must not be installed after a failed run")
	}
	if len(board.Teams) != 0 || len(board.Submissions) != 0 {
		t.Errorf("board = %d teams, %d submissions, want empty", len(board.Teams), len(board.Submissions))
	}
}

func TestSpider_GroupsFailure(t *testing.T) {
	mock := testutil.NewMockJudge()
	defer mock.Close()
	mock.SetResponse("/c1/groups", testutil.NewServerErrorResponse())

	s := NewSpider(newJudgeClient(t, mock), spiderConfig())
	err := s.Run(context.Background(), false)

	var remoteErr *client.RemoteRequestError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Run() error = %v, want *RemoteRequestError", err)
	}
	if remoteErr.ErrorClass != client.ErrorClassServer {
		t.Errorf("ErrorClass = %v, want server", remoteErr.ErrorClass)
	}
}

// One transient 503 per team must be retried against the judge with the
// shipped client and retry defaults, including with a breaker the config
// layer accepts.
func TestSpider_TransientFailuresWithDefaults(t *testing.T) {
	tests := []struct {
		name            string
		breakerFailures uint32
	}{
		{name: "default client config", breakerFailures: client.DefaultConfig().BreakerFailures},
		{name: "breaker above batch size", breakerFailures: uint32(batch.DefaultConfig().BatchSize) + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockJudge()
			defer mock.Close()

			const teamCount = 60
			setupContest(mock, teamCount)
			unavailable := testutil.MockResponse{StatusCode: http.StatusServiceUnavailable, Body: `{}`}
			for i := 0; i < teamCount; i++ {
				mock.FailTeam(fmt.Sprintf("t%d", i), unavailable)
			}

			clientCfg := client.DefaultConfig()
			clientCfg.BaseURL = mock.URL()
			clientCfg.BreakerFailures = tt.breakerFailures
			judge, err := client.New(clientCfg)
			if err != nil {
				t.Fatalf("client.New() error = %v", err)
			}

			batchCfg := batch.DefaultConfig()
			batchCfg.BatchDelay = time.Millisecond

			s := NewSpider(judge, Config{
				ContestID: "c1",
				Retry:     client.DefaultRetryConfig(),
				Batch:     batchCfg,
			})
			if err := s.Run(context.Background(), true); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := len(s.Board().Submissions); got != 2*teamCount {
				t.Errorf("submissions = %d, want %d", got, 2*teamCount)
			}
			for i := 0; i < teamCount; i++ {
				id := fmt.Sprintf("t%d", i)
				if got := mock.GetTeamRequestCount(id); got != 2 {
					t.Errorf("team %s requests = %d, want 2 (retry must reach the judge)", id, got)
				}
			}
		})
	}
}
