// Package client provides the PTA judge HTTP transport: fixed browser-like
// headers, a hard per-request timeout, status validation, optional request
// rate limiting and a circuit breaker. Retries are a caller concern (see Retry).
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Sternrassler/pta-board-spider/pkg/logging"
	"github.com/Sternrassler/pta-board-spider/pkg/ratelimit"
)

// Prometheus metrics for judge API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pta_requests_total",
		Help: "Total judge API requests by resource and status",
	}, []string{"resource", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pta_request_duration_seconds",
		Help:    "Judge API request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pta_errors_total",
		Help: "Total judge API errors by class",
	}, []string{"class"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pta_circuit_breaker_state",
		Help: "Judge API circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)

// DefaultBaseURL is the PTA competitions API origin.
const DefaultBaseURL = "https://pintia.cn/api/competitions"

// maxErrorBodySize limits how much of a failed response is kept for diagnostics.
const maxErrorBodySize = 64 * 1024

// Config holds the client configuration.
type Config struct {
	// BaseURL is joined with the contest id and the relative resource path.
	BaseURL string

	// Timeout bounds each request, including reading the body.
	Timeout time.Duration

	// UserAgent sent with every request.
	UserAgent string

	// RequestsPerSecond caps the request rate across all goroutines (0 = unlimited).
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit (0 disables the breaker). Rejected requests still count as
	// retry attempts, so an enabled breaker must tolerate a whole failed batch.
	BreakerFailures uint32

	// BreakerTimeout is how long the circuit stays open before probing again.
	BreakerTimeout time.Duration

	// Throttle, when set, is notified about 429 responses so batch pacing can back off.
	Throttle *ratelimit.Tracker
}

// DefaultConfig returns the configuration used against pintia.cn.
// The circuit breaker is off unless BreakerFailures is set.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        10 * time.Second,
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		BreakerTimeout: 30 * time.Second,
	}
}

// Client fetches JSON resources of one judge API namespace.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	config     Config
	logger     zerolog.Logger
}

// New creates a new judge API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %g)", cfg.RequestsPerSecond)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := logging.NewLogger("pta-client")

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		config:  cfg,
		logger:  logger,
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = newBreaker(cfg, logger)
	}

	return c, nil
}

func newBreaker(cfg Config, logger zerolog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	breakerState.Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "pta-api",
		MaxRequests: 3,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			breakerState.Set(float64(to))
		},
	})
}

// URL builds the request URL for a contest-relative resource.
func (c *Client) URL(contestID, relativePath string) string {
	return c.config.BaseURL + "/" + contestID + "/" + strings.TrimLeft(relativePath, "/")
}

// Fetch GETs contestID/relativePath and returns the raw JSON body.
// Every failure is reported as a *RemoteRequestError.
func (c *Client) Fetch(ctx context.Context, contestID, relativePath string) ([]byte, error) {
	url := c.URL(contestID, relativePath)
	resource := resourceName(relativePath)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RemoteRequestError{
			URL:        url,
			ErrorClass: ErrorClassNetwork,
			Message:    "rate limiter wait",
			Err:        err,
		}
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("url", url).
		Str("resource", resource).
		Msg("Executing judge API request")

	var body []byte
	var err error
	if c.breaker != nil {
		body, err = c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, url, contestID, resource)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			errorsTotal.WithLabelValues(string(ErrorClassCircuitOpen)).Inc()
			requestsTotal.WithLabelValues(resource, "rejected").Inc()
			return nil, &RemoteRequestError{
				URL:        url,
				ErrorClass: ErrorClassCircuitOpen,
				Message:    "request rejected by circuit breaker",
				Err:        err,
			}
		}
	} else {
		body, err = c.do(ctx, url, contestID, resource)
	}
	if err != nil {
		return nil, err
	}

	return body, nil
}

// do performs one GET and validates status and body.
func (c *Client) do(ctx context.Context, url, contestID, resource string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &RemoteRequestError{
			URL:        url,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}
	c.setHeaders(req, contestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(resource, "network_error").Inc()
		return nil, &RemoteRequestError{
			URL:        url,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		if errClass == ErrorClassRateLimit {
			c.config.Throttle.RecordThrottle()
		}

		body := readBodyForError(resp.Body)
		c.logger.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Bytes("body", body).
			Msg("Judge API request error")

		return nil, &RemoteRequestError{
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &RemoteRequestError{
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if !json.Valid(body) {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &RemoteRequestError{
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "response body is not valid JSON",
		}
	}

	return body, nil
}

// setHeaders applies the fixed browser-like header set the judge expects.
func (c *Client) setHeaders(req *http.Request, contestID string) {
	req.Header.Set("Accept", "application/json;charset=UTF-8")
	req.Header.Set("Accept-Language", "zh-CN")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Priority", "u=1, i")
	req.Header.Set("Referer", "https://pintia.cn/rankings/"+contestID)
	req.Header.Set("Sec-Ch-Ua", `"Chromium";v="128", "Not;A=Brand";v="24", "Google Chrome";v="128"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"macOS"`)
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
}

// readBodyForError reads at most maxErrorBodySize bytes of a failed response.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// resourceName strips the query string so metric labels stay low-cardinality.
func resourceName(relativePath string) string {
	resource, _, _ := strings.Cut(strings.TrimLeft(relativePath, "/"), "?")
	return resource
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
