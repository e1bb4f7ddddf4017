package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

func TestRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveScorer("votes", 10*time.Millisecond, nil)
	m.ObserveScorer("votes", time.Second, &scorer.ScorerTimeoutError{Scorer: "votes"})
	m.ObserveRerank("", nil)
	m.ObserveRerank("submitting", errors.New("boom"))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{MetricScorerDuration, MetricScorerFailures, MetricRerankRequests, MetricRerankStageFailures} {
		assert.True(t, found[name], "metric %s not gathered", name)
	}

	// Registering twice fails.
	assert.Error(t, m.Register(reg))
}

func TestObserveScorerReasons(t *testing.T) {
	m := NewMetrics()

	m.ObserveScorer("nlc", time.Millisecond, &scorer.ScorerTimeoutError{Scorer: "nlc"})
	m.ObserveScorer("nlc", time.Millisecond, &scorer.ScorerRuntimeError{Scorer: "nlc", Err: errors.New("x")})
	m.ObserveScorer("nlc", time.Millisecond, &scorer.ScorerRuntimeError{Scorer: "nlc", Err: errors.New("y")})
	m.ObserveScorer("nlc", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scorerFailures.WithLabelValues("nlc", ReasonTimeout)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scorerFailures.WithLabelValues("nlc", ReasonError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scorerDuration))
}

func TestObserveRerank(t *testing.T) {
	m := NewMetrics()

	m.ObserveRerank("", nil)
	m.ObserveRerank("", nil)
	m.ObserveRerank("reordering", errors.New("alignment"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rerankRequests.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rerankRequests.WithLabelValues(StatusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rerankStageFailures.WithLabelValues("reordering")))
}
