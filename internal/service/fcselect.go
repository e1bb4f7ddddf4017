// Package service implements the search augmentation and rerank flows
// behind the HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/germanattanasio/answer-retrieval/internal/merge"
	"github.com/germanattanasio/answer-retrieval/internal/ranker"
	"github.com/germanattanasio/answer-retrieval/internal/repository"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/upstream"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultFL         = "id,title,text"
	DefaultSearchRows = 30
	DefaultAnswerDir  = "answers"
)

// Searcher runs searches against the upstream search service.
type Searcher interface {
	Select(ctx context.Context, params url.Values) (*upstream.Response, error)
	FCSelect(ctx context.Context, params url.Values) (*upstream.Response, error)
}

// FeatureScorer computes the custom feature columns for search results.
type FeatureScorer interface {
	Headers() []string
	RequiredFields() []string
	ScoreBatch(ctx context.Context, query scorer.Query, docs []scorer.Document) ([]scorer.FeatureVector, error)
}

// RerankObserver is notified when a rerank finishes. stage is the failing
// stage and is empty on success.
type RerankObserver interface {
	ObserveRerank(stage string, err error)
}

// Config holds the request defaults.
type Config struct {
	DefaultFL         string
	DefaultSearchRows int
	DefaultRankerID   string
	AnswerDir         string
}

func (c Config) withDefaults() Config {
	if c.DefaultFL == "" {
		c.DefaultFL = DefaultFL
	}
	if c.DefaultSearchRows <= 0 {
		c.DefaultSearchRows = DefaultSearchRows
	}
	if c.AnswerDir == "" {
		c.AnswerDir = DefaultAnswerDir
	}
	return c
}

// Option is a functional option for the services.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	observer    RerankObserver
	submissions repository.SubmissionRepository
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver reports rerank outcomes to obs.
func WithObserver(obs RerankObserver) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithSubmissions records every rerank submission in repo.
func WithSubmissions(repo repository.SubmissionRepository) Option {
	return func(o *options) {
		o.submissions = repo
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// FCSelectService augments search results with custom features.
type FCSelectService struct {
	search   Searcher
	features FeatureScorer
	rerank   *RerankCoordinator
	cfg      Config
	logger   *slog.Logger
}

// NewFCSelectService creates a new FCSelectService
func NewFCSelectService(search Searcher, features FeatureScorer, rk ranker.Ranker, cfg Config, opts ...Option) *FCSelectService {
	cfg = cfg.withDefaults()
	o := buildOptions(opts)
	return &FCSelectService{
		search:   search,
		features: features,
		rerank:   newRerankCoordinator(search, features, rk, cfg, o),
		cfg:      cfg,
		logger:   o.logger,
	}
}

// Coordinator returns the rerank coordinator used for ranker_id requests.
func (s *FCSelectService) Coordinator() *RerankCoordinator {
	return s.rerank
}

// Config returns the effective request defaults.
func (s *FCSelectService) Config() Config {
	return s.cfg
}

// FCSelect runs fcselect and appends the custom features to every document's
// featureVector. When returnRSInput is given, the training blob is fetched
// as well and the same features are merged into it. A ranker_id parameter
// turns the request into a full rerank.
func (s *FCSelectService) FCSelect(ctx context.Context, params url.Values) (*upstream.Response, error) {
	if _, ok := params["ranker_id"]; ok {
		return s.rerank.Rerank(ctx, params)
	}

	q, err := param(params, "q", "")
	if err != nil {
		return nil, err
	}
	rows, err := param(params, "rows", strconv.Itoa(s.cfg.DefaultSearchRows))
	if err != nil {
		return nil, err
	}
	fl, err := param(params, "fl", s.cfg.DefaultFL)
	if err != nil {
		return nil, err
	}

	plan := planFields(fl, s.features.RequiredFields())
	base := url.Values{
		"q":    {q},
		"rows": {rows},
		"fl":   {plan.fetchList()},
	}
	if gt, ok := optional(params, "gt"); ok {
		base.Set("gt", gt)
	}

	rsParams := cloneValues(base)
	generateHeader, returnRSInput := false, false
	if v, ok := optional(params, "generateHeader"); ok {
		rsParams.Set("generateHeader", v)
		generateHeader = v == "true"
	}
	if v, ok := optional(params, "returnRSInput"); ok {
		rsParams.Set("returnRSInput", v)
		returnRSInput = true
	}

	resp, err := s.search.FCSelect(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("fcselect: %w", err)
	}

	docs := resp.Response.Docs
	vectors, err := s.features.ScoreBatch(ctx, toQuery(rsParams), prepareDocuments(docs, plan.scoring))
	if err != nil {
		return nil, fmt.Errorf("scoring documents: %w", err)
	}
	if err := merge.MergeDocumentVectors(docs, vectors, plan.suppressed); err != nil {
		return nil, err
	}

	if returnRSInput {
		rs, err := s.search.FCSelect(ctx, rsParams)
		if err != nil {
			return nil, fmt.Errorf("fcselect with RSInput: %w", err)
		}
		if rs.RSInput == nil {
			return nil, fmt.Errorf("fcselect response has no RSInput")
		}
		merged, err := merge.MergeTrainingBlob(*rs.RSInput, vectors, s.features.Headers(), generateHeader)
		if err != nil {
			return nil, err
		}
		blob := merged.String()
		resp.RSInput = &blob
	}

	s.logger.Debug("fcselect augmented",
		"documents", len(docs),
		"features", len(s.features.Headers()),
		"rs_input", returnRSInput,
	)
	return resp, nil
}

// Custom scores fcselect results with the custom features and returns them
// without a training blob. With a default ranker configured the results are
// reranked by it instead.
func (s *FCSelectService) Custom(ctx context.Context, params url.Values) (*upstream.Response, error) {
	fwd := url.Values{}
	for _, name := range []string{"q", "rows", "fl", "gt"} {
		if v, ok := optional(params, name); ok {
			fwd.Set(name, v)
		}
	}
	if s.cfg.DefaultRankerID != "" {
		fwd.Set("ranker_id", s.cfg.DefaultRankerID)
	}
	return s.FCSelect(ctx, fwd)
}

// Default forwards the query to fcselect with a ranker and returns the
// upstream ranking untouched.
func (s *FCSelectService) Default(ctx context.Context, params url.Values) (*upstream.Response, error) {
	q, err := param(params, "q", "")
	if err != nil {
		return nil, err
	}
	fl, err := param(params, "fl", s.cfg.DefaultFL)
	if err != nil {
		return nil, err
	}
	rankerID, err := param(params, "ranker_id", s.cfg.DefaultRankerID)
	if err != nil {
		return nil, err
	}

	fwd := url.Values{"q": {q}, "fl": {fl}, "ranker_id": {rankerID}}
	if rows, ok := optional(params, "rows"); ok {
		fwd.Set("rows", rows)
	}
	resp, err := s.search.FCSelect(ctx, fwd)
	if err != nil {
		return nil, fmt.Errorf("fcselect: %w", err)
	}
	return resp, nil
}

// Search runs a plain select for q.
func (s *FCSelectService) Search(ctx context.Context, params url.Values) (*upstream.Response, error) {
	q, err := param(params, "q", "")
	if err != nil {
		return nil, err
	}
	fwd := url.Values{"q": {q}}
	if fl, ok := optional(params, "fl"); ok {
		fwd.Set("fl", fl)
	}
	if rows, ok := optional(params, "rows"); ok {
		fwd.Set("rows", rows)
	}
	resp, err := s.search.Select(ctx, fwd)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return resp, nil
}
