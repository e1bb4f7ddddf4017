package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

type fnDoc struct {
	scorer.Info
	fn func(ctx context.Context, doc scorer.Document) (float64, error)
}

func (s fnDoc) RequiredFields() []string { return nil }
func (s fnDoc) ScoreDocument(ctx context.Context, doc scorer.Document) (float64, error) {
	return s.fn(ctx, doc)
}

type fnQuery struct {
	scorer.Info
	fn func(ctx context.Context, q scorer.Query) (float64, error)
}

func (s fnQuery) RequiredFields() []string { return nil }
func (s fnQuery) ScoreQuery(ctx context.Context, q scorer.Query) (float64, error) {
	return s.fn(ctx, q)
}

type fnQD struct {
	scorer.Info
	fn func(ctx context.Context, q scorer.Query, doc scorer.Document) (float64, error)
}

func (s fnQD) RequiredFields() []string { return []string{"text"} }
func (s fnQD) ScoreQueryDocument(ctx context.Context, q scorer.Query, doc scorer.Document) (float64, error) {
	return s.fn(ctx, q, doc)
}

func named(short string) scorer.Info {
	return scorer.NewInfo(scorer.Args{}, short, short)
}

func constDoc(short string, v float64) scorer.Entry {
	return scorer.Entry{Kind: scorer.KindDocument, Scorer: fnDoc{Info: named(short), fn: func(context.Context, scorer.Document) (float64, error) {
		return v, nil
	}}}
}

func newRegistry(t *testing.T, entries ...scorer.Entry) *scorer.Registry {
	t.Helper()
	r, err := scorer.NewRegistry(entries...)
	require.NoError(t, err)
	return r
}

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]error
}

func (o *recordingObserver) ObserveScorer(name string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string]error)
	}
	o.calls[name] = err
}

func TestScoresPlacesValuesInColumnOrder(t *testing.T) {
	reg := newRegistry(t,
		scorer.Entry{Kind: scorer.KindQueryDocument, Scorer: fnQD{Info: named("overlap"), fn: func(_ context.Context, q scorer.Query, doc scorer.Document) (float64, error) {
			if q.Text() == "go" && doc.ID() == "d1" {
				return 0.75, nil
			}
			return 0, nil
		}}},
		scorer.Entry{Kind: scorer.KindQuery, Scorer: fnQuery{Info: named("qlen"), fn: func(_ context.Context, q scorer.Query) (float64, error) {
			return float64(len(q.Text())), nil
		}}},
		constDoc("votes", 0.35),
	)
	obs := &recordingObserver{}
	e := New(reg, Config{Workers: 2, Timeout: time.Second, Observer: obs})

	vec, err := e.Scores(context.Background(), scorer.Query{"q": "go"}, scorer.Document{"id": "d1"})
	require.NoError(t, err)
	require.Len(t, vec, reg.Len())

	assert.Equal(t, []string{"votes", "qlen", "overlap"}, e.Headers())
	assert.Equal(t, scorer.FeatureVector{
		{Name: "votes", Value: 0.35},
		{Name: "qlen", Value: 2},
		{Name: "overlap", Value: 0.75},
	}, vec)
	assert.Len(t, obs.calls, 3)
}

func TestScoresTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	reg := newRegistry(t,
		constDoc("fast", 1),
		scorer.Entry{Kind: scorer.KindDocument, Scorer: fnDoc{Info: named("stuck"), fn: func(context.Context, scorer.Document) (float64, error) {
			// Ignores its context on purpose.
			<-release
			return 1, nil
		}}},
	)
	obs := &recordingObserver{}
	e := New(reg, Config{Workers: 4, Timeout: 50 * time.Millisecond, Observer: obs})

	start := time.Now()
	vec, err := e.Scores(context.Background(), scorer.Query{}, scorer.Document{"id": "1"})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, vec)

	var timeoutErr *scorer.ScorerTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "stuck", timeoutErr.Scorer)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.ErrorAs(t, obs.calls["stuck"], &timeoutErr)
}

func TestScoresRuntimeErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		fn   func(context.Context, scorer.Document) (float64, error)
	}{
		{"error", func(context.Context, scorer.Document) (float64, error) { return 0, boom }},
		{"nan", func(context.Context, scorer.Document) (float64, error) { return math.NaN(), nil }},
		{"inf", func(context.Context, scorer.Document) (float64, error) { return math.Inf(1), nil }},
		{"panic", func(context.Context, scorer.Document) (float64, error) { panic("kaboom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newRegistry(t, constDoc("ok", 1), scorer.Entry{
				Kind:   scorer.KindDocument,
				Scorer: fnDoc{Info: named("bad"), fn: tt.fn},
			})
			e := New(reg, Config{Timeout: time.Second})

			_, err := e.Scores(context.Background(), scorer.Query{}, scorer.Document{})
			var runtimeErr *scorer.ScorerRuntimeError
			require.ErrorAs(t, err, &runtimeErr)
			assert.Equal(t, "bad", runtimeErr.Scorer)
		})
	}
}

func TestScoresParentCancellation(t *testing.T) {
	reg := newRegistry(t, scorer.Entry{Kind: scorer.KindDocument, Scorer: fnDoc{Info: named("slow"), fn: func(ctx context.Context, _ scorer.Document) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}})
	e := New(reg, Config{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Scores(ctx, scorer.Query{}, scorer.Document{})
	require.ErrorIs(t, err, context.Canceled)

	var timeoutErr *scorer.ScorerTimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	slow := func(short string) scorer.Entry {
		return scorer.Entry{Kind: scorer.KindDocument, Scorer: fnDoc{Info: named(short), fn: func(context.Context, scorer.Document) (float64, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return 1, nil
		}}}
	}

	reg := newRegistry(t, slow("a"), slow("b"), slow("c"), slow("d"), slow("e"), slow("f"))
	e := New(reg, Config{Workers: 2, Timeout: 5 * time.Second})

	vec, err := e.Scores(context.Background(), scorer.Query{}, scorer.Document{})
	require.NoError(t, err)
	assert.Len(t, vec, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestScoreBatch(t *testing.T) {
	reg := newRegistry(t, scorer.Entry{Kind: scorer.KindDocument, Scorer: fnDoc{Info: named("views"), fn: func(_ context.Context, doc scorer.Document) (float64, error) {
		v, ok := doc.Float("views")
		if !ok {
			return 0, errors.New("views missing")
		}
		return v, nil
	}}})
	e := New(reg, Config{})

	docs := []scorer.Document{{"id": "a", "views": 3.0}, {"id": "b", "views": 1.0}, {"id": "c", "views": 2.0}}
	vecs, err := e.ScoreBatch(context.Background(), scorer.Query{}, docs)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float64{3}, vecs[0].Values())
	assert.Equal(t, []float64{1}, vecs[1].Values())
	assert.Equal(t, []float64{2}, vecs[2].Values())

	docs = append(docs, scorer.Document{"id": "d"})
	_, err = e.ScoreBatch(context.Background(), scorer.Query{}, docs)
	var runtimeErr *scorer.ScorerRuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, err.Error(), `"d"`)
}

func TestPoolSubmitWaitsForSlot(t *testing.T) {
	p := NewPool(1)
	assert.Equal(t, 1, p.Size())

	hold := make(chan struct{})
	started := make(chan struct{})
	first := p.Submit(context.Background(), func(context.Context) (float64, error) {
		close(started)
		<-hold
		return 1, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := <-p.Submit(ctx, func(context.Context) (float64, error) { return 2, nil })
	assert.ErrorIs(t, second.Err, context.DeadlineExceeded)

	close(hold)
	res := <-first
	require.NoError(t, res.Err)
	assert.Equal(t, 1.0, res.Value)

	res = <-p.Submit(context.Background(), func(context.Context) (float64, error) { return 3, nil })
	assert.Equal(t, 3.0, res.Value)
}
