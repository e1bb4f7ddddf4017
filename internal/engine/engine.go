package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// DefaultTimeout is the per-scorer deadline used when none is configured.
const DefaultTimeout = 10 * time.Second

// Observer is notified after every scorer invocation. err is nil on success
// and a *scorer.ScorerTimeoutError or *scorer.ScorerRuntimeError otherwise.
type Observer interface {
	ObserveScorer(shortName string, elapsed time.Duration, err error)
}

// Config configures an Engine.
type Config struct {
	Workers  int
	Timeout  time.Duration
	Pool     *Pool
	Observer Observer
	Logger   *slog.Logger
}

// Engine scores queries and documents with every scorer of a Registry.
type Engine struct {
	registry *scorer.Registry
	entries  []scorer.Entry
	pool     *Pool
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
}

// New creates an Engine over registry. A nil Config.Pool creates a private
// pool of Config.Workers slots.
func New(registry *scorer.Registry, cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Pool == nil {
		cfg.Pool = NewPool(cfg.Workers)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		entries:  registry.Entries(),
		pool:     cfg.Pool,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Registry returns the registry the engine scores with.
func (e *Engine) Registry() *scorer.Registry {
	return e.registry
}

// Headers returns the feature column names.
func (e *Engine) Headers() []string {
	return e.registry.Headers()
}

// RequiredFields returns the document fields the scorers need fetched.
func (e *Engine) RequiredFields() []string {
	return e.registry.RequiredFields()
}

// Scores runs every scorer for query and doc concurrently and returns their
// values in column order. The first failure aborts the call; no value is
// ever substituted for a failed scorer.
func (e *Engine) Scores(ctx context.Context, query scorer.Query, doc scorer.Document) (scorer.FeatureVector, error) {
	vec := make(scorer.FeatureVector, len(e.entries))
	g, gctx := errgroup.WithContext(ctx)

	for i, entry := range e.entries {
		g.Go(func() error {
			v, err := e.invoke(gctx, entry, query, doc)
			if err != nil {
				return err
			}
			vec[i] = scorer.Feature{Name: entry.Scorer.ShortName(), Value: v}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vec, nil
}

// ScoreBatch scores every document for query, in input order, on the shared
// pool. It stops at the first failing document.
func (e *Engine) ScoreBatch(ctx context.Context, query scorer.Query, docs []scorer.Document) ([]scorer.FeatureVector, error) {
	out := make([]scorer.FeatureVector, len(docs))
	for i, doc := range docs {
		vec, err := e.Scores(ctx, query, doc)
		if err != nil {
			return nil, fmt.Errorf("document %d (id %q): %w", i, doc.ID(), err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Engine) invoke(ctx context.Context, entry scorer.Entry, query scorer.Query, doc scorer.Document) (float64, error) {
	name := entry.Scorer.ShortName()
	start := time.Now()

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res Result
	select {
	case res = <-e.pool.Submit(tctx, bind(entry, query, doc)):
	case <-tctx.Done():
		res = Result{Err: tctx.Err()}
	}

	err := e.classify(ctx, tctx, name, res)
	if err == nil && (math.IsNaN(res.Value) || math.IsInf(res.Value, 0)) {
		err = &scorer.ScorerRuntimeError{Scorer: name, Err: fmt.Errorf("non-finite score %v", res.Value)}
	}

	elapsed := time.Since(start)
	if ctx.Err() == nil && e.observer != nil {
		e.observer.ObserveScorer(name, elapsed, err)
	}
	if err != nil {
		e.logger.Debug("scorer failed", "scorer", name, "elapsed", elapsed, "error", err)
		return 0, err
	}
	return res.Value, nil
}

// classify turns a raw task result into the error the caller sees. Errors
// caused by the parent context are returned unchanged so that a sibling
// failure or client cancellation is not reported as a scorer fault.
func (e *Engine) classify(parent, tctx context.Context, name string, res Result) error {
	if res.Err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return &scorer.ScorerTimeoutError{Scorer: name, Timeout: e.timeout}
	}
	return &scorer.ScorerRuntimeError{Scorer: name, Err: res.Err}
}

func bind(entry scorer.Entry, query scorer.Query, doc scorer.Document) Task {
	switch entry.Kind {
	case scorer.KindDocument:
		s := entry.Scorer.(scorer.DocumentScorer)
		return func(ctx context.Context) (float64, error) { return s.ScoreDocument(ctx, doc) }
	case scorer.KindQuery:
		s := entry.Scorer.(scorer.QueryScorer)
		return func(ctx context.Context) (float64, error) { return s.ScoreQuery(ctx, query) }
	default:
		s := entry.Scorer.(scorer.QueryDocumentScorer)
		return func(ctx context.Context) (float64, error) { return s.ScoreQueryDocument(ctx, query, doc) }
	}
}
