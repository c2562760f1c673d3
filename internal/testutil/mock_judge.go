// Package testutil provides a mock PTA judge and payload builders for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock judge response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockJudge is a configurable mock judge server for testing. Paths are the
// contest-relative resource paths, e.g. "/c1/groups".
type MockJudge struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	teamSubmissions map[string]string
	teamFailures    map[string][]MockResponse

	// Tracking
	RequestCount      int
	TeamRequests      map[string]int
	LastRequestHeader http.Header
	inFlight          int
	maxInFlight       int
}

// NewMockJudge creates a new mock judge server.
func NewMockJudge() *MockJudge {
	mock := &MockJudge{
		handlers:        make(map[string]http.HandlerFunc),
		teamSubmissions: make(map[string]string),
		teamFailures:    make(map[string][]MockResponse),
		TeamRequests:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.inFlight++
		mock.maxInFlight = max(mock.maxInFlight, mock.inFlight)
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if strings.HasSuffix(r.URL.Path, "/xcpc-rankings-team-submissions") {
			mock.serveTeamSubmissions(w, r)
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the base URL to configure the client with.
func (m *MockJudge) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockJudge) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockJudge) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockJudge) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetGroups serves body as the groups payload of contestID.
func (m *MockJudge) SetGroups(contestID, body string) {
	m.SetResponse("/"+contestID+"/groups", NewJSONResponse(body))
}

// SetRank serves body as the rank snapshot of contestID.
func (m *MockJudge) SetRank(contestID, body string) {
	m.SetResponse("/"+contestID+"/xcpc-rankings", NewJSONResponse(body))
}

// SetTeamSubmissions serves body as the submission list of teamID.
func (m *MockJudge) SetTeamSubmissions(teamID, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teamSubmissions[teamID] = body
}

// FailTeam makes the next len(responses) requests for teamID answer with
// the given responses, in order, before serving the normal payload.
func (m *MockJudge) FailTeam(teamID string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teamFailures[teamID] = append(m.teamFailures[teamID], responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockJudge) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTeamRequestCount returns the number of submission requests for teamID.
func (m *MockJudge) GetTeamRequestCount(teamID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TeamRequests[teamID]
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockJudge) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

func (m *MockJudge) serveTeamSubmissions(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_fid")

	m.mu.Lock()
	m.TeamRequests[teamID]++
	var failure *MockResponse
	if queue := m.teamFailures[teamID]; len(queue) > 0 {
		failure = &queue[0]
		m.teamFailures[teamID] = queue[1:]
	}
	body, ok := m.teamSubmissions[teamID]
	m.mu.Unlock()

	if failure != nil {
		writeResponse(w, *failure)
		return
	}
	if !ok {
		body = `{"submissions":[]}`
	}
	writeResponse(w, NewJSONResponse(body))
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a standard 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=UTF-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":"TOO_MANY_REQUESTS"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=UTF-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"code":"INTERNAL_ERROR"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=UTF-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"submissions": [`,
	}
}
