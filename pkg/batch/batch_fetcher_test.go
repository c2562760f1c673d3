package batch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

// fakeTeamFetcher returns scripted runs per team and tracks concurrency.
type fakeTeamFetcher struct {
	mu          sync.Mutex
	runs        map[string]model.Submissions
	fail        map[string]error
	delay       time.Duration
	inFlight    int
	maxInFlight int
	calls       []string
}

func (f *fakeTeamFetcher) FetchTeamSubmissions(ctx context.Context, teamID string) (model.Submissions, error) {
	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	f.calls = append(f.calls, teamID)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.fail[teamID]; ok {
		return nil, err
	}
	return f.runs[teamID], nil
}

// eventPacer records pauses into a shared event log.
type eventPacer struct {
	events *[]string
	err    error
}

func (p *eventPacer) Wait(ctx context.Context) error {
	*p.events = append(*p.events, "pause")
	return p.err
}

func teamIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%03d", i)
	}
	return ids
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		size  int
		sizes []int
	}{
		{name: "empty", ids: nil, size: 3, sizes: []int{}},
		{name: "exact", ids: teamIDs(6), size: 3, sizes: []int{3, 3}},
		{name: "remainder", ids: teamIDs(250), size: 100, sizes: []int{100, 100, 50}},
		{name: "smaller than size", ids: teamIDs(2), size: 100, sizes: []int{2}},
		{name: "non-positive size", ids: teamIDs(2), size: 0, sizes: []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Partition(tt.ids, tt.size)
			sizes := make([]int, len(batches))
			var flat []string
			for i, b := range batches {
				sizes[i] = len(b)
				flat = append(flat, b...)
			}
			if !reflect.DeepEqual(sizes, tt.sizes) {
				t.Errorf("sizes = %v, want %v", sizes, tt.sizes)
			}
			if len(tt.ids) > 0 && !reflect.DeepEqual(flat, tt.ids) {
				t.Error("Partition must preserve order")
			}
		})
	}
}

func TestFetchAll_WavesAndPauses(t *testing.T) {
	var events []string
	fetcher := &fakeTeamFetcher{runs: map[string]model.Submissions{}, delay: time.Millisecond}

	cfg := Config{
		BatchSize: 100,
		Pacer:     &eventPacer{events: &events},
		OnBatch: func(index, size int) {
			events = append(events, fmt.Sprintf("batch%d:%d", index, size))
		},
	}

	f := NewFetcher(fetcher, cfg, zerolog.Nop())
	if _, err := f.FetchAll(context.Background(), teamIDs(250)); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	want := []string{"batch0:100", "pause", "batch1:100", "pause", "batch2:50"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if len(fetcher.calls) != 250 {
		t.Errorf("calls = %d, want 250", len(fetcher.calls))
	}
	if fetcher.maxInFlight > 100 {
		t.Errorf("max in flight = %d, want <= 100", fetcher.maxInFlight)
	}
}

func TestFetchAll_ConcurrencyBoundedByBatchSize(t *testing.T) {
	fetcher := &fakeTeamFetcher{delay: 20 * time.Millisecond}
	f := NewFetcher(fetcher, Config{BatchSize: 4}, zerolog.Nop())

	if _, err := f.FetchAll(context.Background(), teamIDs(10)); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if fetcher.maxInFlight > 4 {
		t.Errorf("max in flight = %d, want <= 4", fetcher.maxInFlight)
	}
	if fetcher.maxInFlight < 2 {
		t.Errorf("max in flight = %d, expected concurrent fetches within a batch", fetcher.maxInFlight)
	}
}

func TestFetchAll_SortedAndStable(t *testing.T) {
	fetcher := &fakeTeamFetcher{runs: map[string]model.Submissions{
		"t1": {
			{TeamID: "t1", ProblemID: 0, Timestamp: 50, SubmissionID: "s1"},
			{TeamID: "t1", ProblemID: 1, Timestamp: 10, SubmissionID: "s2"},
		},
		"t2": {
			{TeamID: "t2", ProblemID: 0, Timestamp: 50, SubmissionID: "s3"},
			{TeamID: "t2", ProblemID: 2, Timestamp: 5, SubmissionID: "s4"},
		},
		"t3": {
			{TeamID: "t3", ProblemID: 1, Timestamp: 50, SubmissionID: "s5"},
		},
	}}

	var events []string
	cfg := Config{BatchSize: 2, Pacer: &eventPacer{events: &events}}
	f := NewFetcher(fetcher, cfg, zerolog.Nop())

	runs, err := f.FetchAll(context.Background(), []string{"t1", "t2", "t3"})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	got := make([]string, len(runs))
	for i, r := range runs {
		got[i] = r.SubmissionID
	}
	// ties keep batch order, then team order, then per-team order
	want := []string{"s4", "s2", "s1", "s3", "s5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestFetchAll_FailureIsAllOrNothing(t *testing.T) {
	boom := errors.New("boom")
	fetcher := &fakeTeamFetcher{
		runs: map[string]model.Submissions{
			"t000": {{TeamID: "t000", Timestamp: 1}},
		},
		fail: map[string]error{"t003": boom},
	}

	var events []string
	cfg := Config{
		BatchSize: 2,
		Pacer:     &eventPacer{events: &events},
		OnBatch: func(index, size int) {
			events = append(events, fmt.Sprintf("batch%d", index))
		},
	}
	f := NewFetcher(fetcher, cfg, zerolog.Nop())
	failuresBefore := testutil.ToFloat64(teamFetchFailures)
	failedBefore := testutil.ToFloat64(batchesTotal.WithLabelValues("failed"))

	runs, err := f.FetchAll(context.Background(), teamIDs(6))
	if !errors.Is(err, boom) {
		t.Fatalf("FetchAll() error = %v, want wrapping %v", err, boom)
	}
	if runs != nil {
		t.Errorf("FetchAll() returned %d runs on failure, want nil", len(runs))
	}

	// the failing batch finishes, later batches never start
	want := []string{"batch0", "pause", "batch1"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if len(fetcher.calls) != 4 {
		t.Errorf("calls = %d, want 4", len(fetcher.calls))
	}

	if got := testutil.ToFloat64(teamFetchFailures) - failuresBefore; got != 1 {
		t.Errorf("team fetch failures delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(batchesTotal.WithLabelValues("failed")) - failedBefore; got != 1 {
		t.Errorf("failed batches delta = %v, want 1", got)
	}
}

func TestFetchAll_SiblingsNotCancelled(t *testing.T) {
	fetcher := &fakeTeamFetcher{
		runs:  map[string]model.Submissions{},
		fail:  map[string]error{"t000": errors.New("boom")},
		delay: 10 * time.Millisecond,
	}
	f := NewFetcher(fetcher, Config{BatchSize: 5}, zerolog.Nop())

	if _, err := f.FetchAll(context.Background(), teamIDs(5)); err == nil {
		t.Fatal("FetchAll() error = nil, want error")
	}
	if len(fetcher.calls) != 5 {
		t.Errorf("calls = %d, want all 5 teams attempted", len(fetcher.calls))
	}
}

func TestFetchAll_PauseCancelled(t *testing.T) {
	var events []string
	cfg := Config{BatchSize: 1, Pacer: &eventPacer{events: &events, err: context.Canceled}}
	f := NewFetcher(&fakeTeamFetcher{}, cfg, zerolog.Nop())

	_, err := f.FetchAll(context.Background(), teamIDs(3))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("FetchAll() error = %v, want context.Canceled", err)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	f := NewFetcher(&fakeTeamFetcher{}, DefaultConfig(), zerolog.Nop())

	runs, err := f.FetchAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}

func TestFetchAll_DefaultPacerWaits(t *testing.T) {
	cfg := Config{BatchSize: 1, BatchDelay: 30 * time.Millisecond}
	f := NewFetcher(&fakeTeamFetcher{}, cfg, zerolog.Nop())

	start := time.Now()
	if _, err := f.FetchAll(context.Background(), teamIDs(3)); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 60ms for two pauses", elapsed)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.BatchSize)
	}
	if cfg.BatchDelay != time.Second {
		t.Errorf("BatchDelay = %v, want 1s", cfg.BatchDelay)
	}
}
