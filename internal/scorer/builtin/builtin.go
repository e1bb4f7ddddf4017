// Package builtin provides the scorer classes available to scorer files.
// Importing it registers every class with the scorer package.
package builtin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// Class names as they appear in the "class" field of a scorer file.
const (
	ClassUpVote             = "UpVoteScorer"
	ClassPopularity         = "PopularityScorer"
	ClassTotalDocumentWords = "TotalDocumentWordsScorer"
	ClassRedisZScore        = "RedisZScoreScorer"
	ClassDocumentExpression = "DocumentExpressionScorer"
	ClassProperNounRatio    = "ProperNounRatioScorer"
	ClassQueryExpression    = "QueryExpressionScorer"
	ClassWhatIs             = "WhatIsScorer"
	ClassQueryDefinition    = "QueryDefinitionScorer"
	ClassNLCIntent          = "NLCIntentScorer"
	ClassMultiNLCIntent     = "MultiNLCIntentScorer"
	ClassVectorSimilarity   = "VectorSimilarityScorer"
	ClassLLMRelevance       = "LLMRelevanceScorer"
	ClassQueryDocumentExpr  = "QueryDocumentExpressionScorer"
)

const defaultRemoteClientTimeout = 10 * time.Second

func init() {
	scorer.Register(ClassUpVote, newUpVoteScorer)
	scorer.Register(ClassPopularity, newPopularityScorer)
	scorer.Register(ClassTotalDocumentWords, newTotalDocumentWordsScorer)
	scorer.Register(ClassRedisZScore, newRedisZScoreScorer)
	scorer.Register(ClassDocumentExpression, newDocumentExpressionScorer)
	scorer.Register(ClassProperNounRatio, newProperNounRatioScorer)
	scorer.Register(ClassQueryExpression, newQueryExpressionScorer)
	scorer.Register(ClassWhatIs, newWhatIsScorer)
	scorer.Register(ClassQueryDefinition, newQueryDefinitionScorer)
	scorer.Register(ClassNLCIntent, newNLCIntentScorer)
	scorer.Register(ClassMultiNLCIntent, newMultiNLCIntentScorer)
	scorer.Register(ClassVectorSimilarity, newVectorSimilarityScorer)
	scorer.Register(ClassLLMRelevance, newLLMRelevanceScorer)
	scorer.Register(ClassQueryDocumentExpr, newQueryDocumentExpressionScorer)
}

func httpClient(deps scorer.Deps) *http.Client {
	if deps.HTTPClient != nil {
		return deps.HTTPClient
	}
	return &http.Client{Timeout: defaultRemoteClientTimeout}
}

// queryText returns the q parameter or an error when it is missing.
func queryText(query scorer.Query) (string, error) {
	q, ok := query["q"]
	if !ok {
		return "", fmt.Errorf("query has no q parameter")
	}
	return q, nil
}
