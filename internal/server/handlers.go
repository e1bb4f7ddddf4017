package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/germanattanasio/answer-retrieval/internal/auth"
	"github.com/germanattanasio/answer-retrieval/internal/service"
	"github.com/germanattanasio/answer-retrieval/internal/upstream"
)

// SearchService is the part of service.FCSelectService the routes use.
type SearchService interface {
	Default(ctx context.Context, params url.Values) (*upstream.Response, error)
	Custom(ctx context.Context, params url.Values) (*upstream.Response, error)
	FCSelect(ctx context.Context, params url.Values) (*upstream.Response, error)
	Search(ctx context.Context, params url.Values) (*upstream.Response, error)
}

var _ SearchService = (*service.FCSelectService)(nil)

type handlers struct {
	svc    SearchService
	logger *slog.Logger
}

type serviceCall func(ctx context.Context, params url.Values) (*upstream.Response, error)

// ranker returns the default ranker's ordering with no custom features.
func (h *handlers) ranker(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.Default)
}

// customRanker returns search results with the custom features appended.
func (h *handlers) customRanker(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.Custom)
}

// trainRanker forwards every parameter; returnRSInput yields the augmented
// training blob and ranker_id a full rerank.
func (h *handlers) trainRanker(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.FCSelect)
}

func (h *handlers) solr(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.Search)
}

func (h *handlers) serve(w http.ResponseWriter, r *http.Request, call serviceCall) {
	resp, err := call(r.Context(), r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	attrs := []any{"path", r.URL.Path, "status", code, "error", err}
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		attrs = append(attrs, "auth_method", p.Method, "subject", p.Subject)
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", attrs...)
	} else {
		h.logger.Warn("request rejected", attrs...)
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Code: code})
}

// statusFor maps service errors onto HTTP status codes. Upstream failures
// keep the status the upstream service answered with.
func statusFor(err error) int {
	if errors.Is(err, service.ErrMissingParameter) {
		return http.StatusBadRequest
	}
	var upErr *upstream.UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode >= http.StatusBadRequest {
		return upErr.StatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
