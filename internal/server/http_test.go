package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanattanasio/answer-retrieval/internal/auth"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/service"
	"github.com/germanattanasio/answer-retrieval/internal/upstream"
)

type call struct {
	op     string
	params url.Values
}

type fakeService struct {
	calls []call
	err   error
}

func (f *fakeService) record(op string, params url.Values) (*upstream.Response, error) {
	f.calls = append(f.calls, call{op: op, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.Response{Response: upstream.ResultSet{
		NumFound: 1,
		Docs:     []scorer.Document{{"id": "doc1", "featureVector": "0.1 0.5000"}},
	}}, nil
}

func (f *fakeService) Default(_ context.Context, p url.Values) (*upstream.Response, error) {
	return f.record("default", p)
}

func (f *fakeService) Custom(_ context.Context, p url.Values) (*upstream.Response, error) {
	return f.record("custom", p)
}

func (f *fakeService) FCSelect(_ context.Context, p url.Values) (*upstream.Response, error) {
	return f.record("fcselect", p)
}

func (f *fakeService) Search(_ context.Context, p url.Values) (*upstream.Response, error) {
	return f.record("search", p)
}

func newTestServer(t *testing.T, cfg HTTPServerConfig) http.Handler {
	t.Helper()
	s, err := NewHTTPServer(cfg)
	require.NoError(t, err)
	return s.Handler()
}

func get(h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		path string
		op   string
	}{
		{"/api/ranker?q=rust", "default"},
		{"/api/custom_ranker?q=rust", "custom"},
		{"/api/train_ranker?q=rust&returnRSInput=true", "fcselect"},
		{"/api/solr?q=rust", "search"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			svc := &fakeService{}
			h := newTestServer(t, HTTPServerConfig{Service: svc})

			rec := get(h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			require.Len(t, svc.calls, 1)
			assert.Equal(t, tt.op, svc.calls[0].op)
			assert.Equal(t, "rust", svc.calls[0].params.Get("q"))

			var body upstream.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Response.Docs, 1)
			assert.Equal(t, "doc1", body.Response.Docs[0].ID())
		})
	}
}

func TestTrainRankerForwardsAllParameters(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(t, HTTPServerConfig{Service: svc})

	rec := get(h, "/api/train_ranker?q=rust&gt=1&generateHeader=true&ranker_id=rk")
	require.Equal(t, http.StatusOK, rec.Code)
	p := svc.calls[0].params
	assert.Equal(t, "1", p.Get("gt"))
	assert.Equal(t, "true", p.Get("generateHeader"))
	assert.Equal(t, "rk", p.Get("ranker_id"))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing parameter", fmt.Errorf("%w: q", service.ErrMissingParameter), http.StatusBadRequest},
		{"missing parameter in stage", &service.StageError{Stage: service.StageFetching, Err: fmt.Errorf("%w: ranker_id", service.ErrMissingParameter)}, http.StatusBadRequest},
		{"upstream", &upstream.UpstreamError{Service: "ranker", Operation: "rank", StatusCode: http.StatusNotFound, Body: "no ranker"}, http.StatusNotFound},
		{"upstream in stage", &service.StageError{Stage: service.StageSubmitting, Err: &upstream.UpstreamError{StatusCode: http.StatusBadGateway}}, http.StatusBadGateway},
		{"scorer", &scorer.ScorerRuntimeError{Scorer: "s1", Err: errors.New("boom")}, http.StatusInternalServerError},
		{"deadline", fmt.Errorf("select: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, HTTPServerConfig{Service: &fakeService{err: tt.err}})

			rec := get(h, "/api/custom_ranker?q=rust")
			require.Equal(t, tt.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Code)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestAPIRoutesRequireAuth(t *testing.T) {
	a := auth.NewAuthenticator([]string{"k1"}, nil)
	h := newTestServer(t, HTTPServerConfig{Service: &fakeService{}, Auth: a.Middleware})

	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/solr?q=rust").Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/solr?q=rust", auth.APIKeyHeader, "k1").Code)
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
}

func TestFailedRequestsLogCaller(t *testing.T) {
	var logs bytes.Buffer
	jwt := auth.NewJWTManager("s3cret", time.Hour)
	a := auth.NewAuthenticator([]string{"k1"}, jwt)
	h := newTestServer(t, HTTPServerConfig{
		Service: &fakeService{err: &upstream.UpstreamError{Service: "ranker", StatusCode: http.StatusBadGateway}},
		Logger:  slog.New(slog.NewJSONHandler(&logs, nil)),
		Auth:    a.Middleware,
	})

	token, err := jwt.Issue("client-1", "search ui", 0)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, get(h, "/api/ranker?q=rust", "Authorization", "Bearer "+token).Code)
	require.Equal(t, http.StatusBadGateway, get(h, "/api/ranker?q=rust", auth.APIKeyHeader, "k1").Code)

	var failures []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "request failed" {
			failures = append(failures, entry)
		}
	}
	require.Len(t, failures, 2)
	assert.Equal(t, "jwt", failures[0]["auth_method"])
	assert.Equal(t, "client-1", failures[0]["subject"])
	assert.Equal(t, "api_key", failures[1]["auth_method"])
	assert.EqualValues(t, http.StatusBadGateway, failures[1]["status"])
}

func TestRejectedRequestsLogWithoutCaller(t *testing.T) {
	var logs bytes.Buffer
	h := newTestServer(t, HTTPServerConfig{
		Service: &fakeService{err: fmt.Errorf("%w: q", service.ErrMissingParameter)},
		Logger:  slog.New(slog.NewJSONHandler(&logs, nil)),
	})

	require.Equal(t, http.StatusBadRequest, get(h, "/api/ranker").Code)
	assert.Contains(t, logs.String(), `"msg":"request rejected"`)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.NotContains(t, logs.String(), `"subject"`)
}

func TestHealthAndReadiness(t *testing.T) {
	var dbErr error
	h := newTestServer(t, HTTPServerConfig{
		Service: &fakeService{},
		Checks: map[string]CheckFunc{
			"database": func(context.Context) error { return dbErr },
		},
	})

	rec := get(h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = get(h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	dbErr = errors.New("connection refused")
	rec = get(h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","checks":{"database":"connection refused"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_requests_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := newTestServer(t, HTTPServerConfig{Service: &fakeService{}, Gatherer: reg})
	rec := get(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_requests_total 1")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, HTTPServerConfig{Service: &fakeService{}, AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/solr", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewHTTPServerRequiresService(t *testing.T) {
	_, err := NewHTTPServer(HTTPServerConfig{})
	require.Error(t, err)
}
