// Package batch fetches the submissions of many teams in sequential waves.
//
// The judge throttles aggressive clients, so teams are partitioned into
// consecutive batches. All teams of a batch are fetched concurrently, and the
// fetcher pauses between batches (longer while the judge answers 429).
//
// Example usage:
//
//	cfg := batch.DefaultConfig()
//	fetcher := batch.NewFetcher(teamRuns, cfg, logger)
//	runs, err := fetcher.FetchAll(ctx, teamIDs)
//
// The batch fetcher:
//   - Runs exactly ceil(N/BatchSize) waves, one goroutine per team
//   - Pauses before every wave except the first
//   - Fails as a whole when any team fails (no partial results)
//   - Returns the runs stably sorted by timestamp
package batch
