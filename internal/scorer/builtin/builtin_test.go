package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

func build(t *testing.T, class string, args scorer.Args) scorer.Scorer {
	t.Helper()
	factory := map[string]scorer.Factory{
		ClassUpVote:             newUpVoteScorer,
		ClassPopularity:         newPopularityScorer,
		ClassTotalDocumentWords: newTotalDocumentWordsScorer,
		ClassProperNounRatio:    newProperNounRatioScorer,
		ClassWhatIs:             newWhatIsScorer,
		ClassQueryDefinition:    newQueryDefinitionScorer,
		ClassDocumentExpression: newDocumentExpressionScorer,
		ClassQueryExpression:    newQueryExpressionScorer,
		ClassQueryDocumentExpr:  newQueryDocumentExpressionScorer,
	}[class]
	require.NotNil(t, factory, class)
	s, err := factory(args, scorer.Deps{})
	require.NoError(t, err)
	return s
}

func TestClassesRegistered(t *testing.T) {
	registered := scorer.SupportedTypes()
	for _, class := range []string{
		ClassUpVote, ClassPopularity, ClassTotalDocumentWords, ClassRedisZScore,
		ClassDocumentExpression, ClassProperNounRatio, ClassQueryExpression,
		ClassWhatIs, ClassQueryDefinition, ClassNLCIntent, ClassMultiNLCIntent,
		ClassVectorSimilarity, ClassLLMRelevance, ClassQueryDocumentExpr,
	} {
		assert.Contains(t, registered, class)
	}
}

func TestBuildFromDescriptors(t *testing.T) {
	reg, err := scorer.Build([]scorer.Descriptor{
		{Type: "query_document", Class: ClassWhatIs, InitArgs: scorer.Args{"short_name": "wis"}},
		{Type: "document", Class: ClassUpVote, InitArgs: scorer.Args{"short_name": "uv"}},
		{Type: "query", Class: ClassProperNounRatio, InitArgs: scorer.Args{"short_name": "pnr"}},
	}, scorer.Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"uv", "pnr", "wis"}, reg.Headers())
	assert.Equal(t, []string{"text"}, reg.RequiredFields())
}

func TestBuildMissingBackend(t *testing.T) {
	_, err := scorer.Build([]scorer.Descriptor{
		{Type: "document", Class: ClassRedisZScore, InitArgs: scorer.Args{"key": "votes"}},
	}, scorer.Deps{})
	var cfgErr *scorer.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestUpVoteScorer(t *testing.T) {
	s := build(t, ClassUpVote, scorer.Args{}).(scorer.DocumentScorer)
	tests := []struct {
		votes any
		want  float64
	}{
		{nil, 0},
		{0.0, 0},
		{2.0, 0.15},
		{5.0, 0.35},
		{"7", 0.55},
		{10.0, 0.75},
		{14.0, 0.85},
		{1000.0, 1},
	}
	for _, tt := range tests {
		doc := scorer.Document{}
		if tt.votes != nil {
			doc["upModVotes"] = tt.votes
		}
		got, err := s.ScoreDocument(context.Background(), doc)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "votes %v", tt.votes)
	}
}

func TestPopularityScorer(t *testing.T) {
	s := build(t, ClassPopularity, scorer.Args{}).(scorer.DocumentScorer)
	score := func(views, accepted float64) float64 {
		v, err := s.ScoreDocument(context.Background(), scorer.Document{"views": views, "accepted": accepted})
		require.NoError(t, err)
		return v
	}

	assert.Greater(t, score(500, 1), score(500, -1))
	assert.Greater(t, score(30000, 1), score(10, 1))
	assert.Equal(t, 0.25, score(500, -1))
	assert.Equal(t, 0.75, score(3000, 1))
	assert.Equal(t, 0.0, score(-1, 1))

	v, err := s.ScoreDocument(context.Background(), scorer.Document{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestTotalDocumentWordsScorer(t *testing.T) {
	s := build(t, ClassTotalDocumentWords, scorer.Args{}).(scorer.DocumentScorer)
	small, err := s.ScoreDocument(context.Background(), scorer.Document{"text": "this is a small document"})
	require.NoError(t, err)
	big, err := s.ScoreDocument(context.Background(), scorer.Document{"text": "this is a much larger document document"})
	require.NoError(t, err)
	assert.Greater(t, big, small)
	assert.Equal(t, 2.0, small)

	all := build(t, ClassTotalDocumentWords, scorer.Args{"include_stop": true}).(scorer.DocumentScorer)
	n, err := all.ScoreDocument(context.Background(), scorer.Document{"text": "this is a small document"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, n)
}

func TestProperNounRatioScorer(t *testing.T) {
	s := build(t, ClassProperNounRatio, scorer.Args{}).(scorer.QueryScorer)

	v, err := s.ScoreQuery(context.Background(), scorer.Query{"q": "How to install Docker on Ubuntu?"})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/6.0, v, 1e-9)

	v, err = s.ScoreQuery(context.Background(), scorer.Query{"q": ""})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = s.ScoreQuery(context.Background(), scorer.Query{})
	require.Error(t, err)
}

func TestWhatIsScorer(t *testing.T) {
	doc := scorer.Document{"text": "Rust is a systems language. It is fast."}
	q := scorer.Query{"q": "What is Rust?"}

	maxS := build(t, ClassWhatIs, scorer.Args{}).(scorer.QueryDocumentScorer)
	v, err := maxS.ScoreQueryDocument(context.Background(), q, doc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	avg := build(t, ClassWhatIs, scorer.Args{"strategy": "average"}).(scorer.QueryDocumentScorer)
	v, err = avg.ScoreQueryDocument(context.Background(), q, doc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = maxS.ScoreQueryDocument(context.Background(), scorer.Query{"q": "how fast is rust"}, doc)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = maxS.ScoreQueryDocument(context.Background(), q, scorer.Document{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestQueryDefinitionScorer(t *testing.T) {
	doc := scorer.Document{"text": "Goroutines are lightweight threads. Channels connect them."}
	q := scorer.Query{"q": "what are goroutines"}

	maxS := build(t, ClassQueryDefinition, scorer.Args{}).(scorer.QueryDocumentScorer)
	v, err := maxS.ScoreQueryDocument(context.Background(), q, doc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	avg := build(t, ClassQueryDefinition, scorer.Args{"strategy": "average"}).(scorer.QueryDocumentScorer)
	v, err = avg.ScoreQueryDocument(context.Background(), q, doc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = maxS.ScoreQueryDocument(context.Background(), scorer.Query{}, doc)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestSentenceStrategyValidated(t *testing.T) {
	_, err := newWhatIsScorer(scorer.Args{"strategy": "median"}, scorer.Deps{})
	require.Error(t, err)
	_, err = newQueryDefinitionScorer(scorer.Args{"strategy": "min"}, scorer.Deps{})
	require.Error(t, err)
}

func TestExpressionScorers(t *testing.T) {
	ctx := context.Background()

	d := build(t, ClassDocumentExpression, scorer.Args{
		"expression": "doc.upModVotes / 10.0",
		"fields":     []any{"upModVotes"},
	}).(scorer.DocumentScorer)
	v, err := d.ScoreDocument(ctx, scorer.Document{"upModVotes": 4.0})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, v, 1e-9)
	assert.Equal(t, []string{"upModVotes"}, d.RequiredFields())

	q := build(t, ClassQueryExpression, scorer.Args{"expression": "size(query.q)"}).(scorer.QueryScorer)
	v, err = q.ScoreQuery(ctx, scorer.Query{"q": "golang"})
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	qd := build(t, ClassQueryDocumentExpr, scorer.Args{"expression": "doc.title.contains(query.q)"}).(scorer.QueryDocumentScorer)
	v, err = qd.ScoreQueryDocument(ctx, scorer.Query{"q": "Go"}, scorer.Document{"title": "Learning Go"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = qd.ScoreQueryDocument(ctx, scorer.Query{"q": "Go"}, scorer.Document{})
	require.Error(t, err)
}

func TestExpressionScorerErrors(t *testing.T) {
	_, err := newDocumentExpressionScorer(scorer.Args{}, scorer.Deps{})
	require.Error(t, err)

	_, err = newDocumentExpressionScorer(scorer.Args{"expression": "doc.("}, scorer.Deps{})
	require.Error(t, err)

	s := build(t, ClassDocumentExpression, scorer.Args{"expression": "doc.title"}).(scorer.DocumentScorer)
	_, err = s.ScoreDocument(context.Background(), scorer.Document{"title": "text"})
	require.Error(t, err)
}
