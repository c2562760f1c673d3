// Package metrics exposes the spider's Prometheus metrics.
// All metrics are defined in their respective packages (client, ratelimit,
// batch, export) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP endpoint and a reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the spider.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is what /metrics serves. It must cover everything in Registry.
var Gatherer = prometheus.DefaultGatherer

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - pta_requests_total{resource, status} (Counter): Judge requests by resource and HTTP status
//   - pta_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - pta_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode, circuit_open)
//   - pta_circuit_breaker_state (Gauge): 0=closed, 1=half-open, 2=open
//
// Retry Metrics (pkg/client):
//   - pta_retries_total{error_class} (Counter): Retry attempts by error class
//   - pta_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pta_retry_exhausted_total{error_class} (Counter): Team fetches that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pta_throttled_responses_total (Counter): 429 responses seen
//   - pta_rate_limit_wait_seconds (Histogram): Time spent waiting on the request limiter
//   - pta_batch_pauses_total (Counter): Pauses between batches
//   - pta_batch_pause_seconds (Histogram): Length of pauses between batches
//
// Batch Metrics (pkg/batch):
//   - pta_batches_total{outcome} (Counter): Team batches by outcome
//   - pta_batch_duration_seconds (Histogram): Wall time of one batch
//   - pta_team_fetch_failures_total (Counter): Teams whose submissions could not be fetched
//   - pta_team_fetches_in_flight (Gauge): Team fetches currently running
//
// Export Metrics (pkg/export):
//   - pta_exports_total{exporter, outcome} (Counter): Board exports by exporter and outcome
//   - pta_export_bytes{exporter, document} (Gauge): Size of the last exported documents
//
// Example Prometheus Queries:
//
//	# Judge Error Rate
//	rate(pta_errors_total[5m])
//
//	# Throttling
//	increase(pta_throttled_responses_total[10m]) > 0
//
//	# P95 Request Latency
//	histogram_quantile(0.95, rate(pta_request_duration_seconds_bucket[5m]))

// Handler returns the HTTP handler serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	))
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Serve runs the metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
