package builtin

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/text"
)

// ProperNounRatioScorer estimates how keyword-like a query is by the share
// of capitalised tokens after the first one.
type ProperNounRatioScorer struct {
	scorer.Info
}

func newProperNounRatioScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	return &ProperNounRatioScorer{Info: scorer.NewInfo(args, "ProperNounRatioScorer", "pnrs")}, nil
}

func (s *ProperNounRatioScorer) RequiredFields() []string { return nil }

func (s *ProperNounRatioScorer) ScoreQuery(_ context.Context, query scorer.Query) (float64, error) {
	q, err := queryText(query)
	if err != nil {
		return 0, err
	}
	tokens := text.Tokens(q)
	if len(tokens) == 0 {
		return 0, nil
	}
	proper := 0
	for _, tok := range tokens[1:] {
		if r, _ := utf8.DecodeRuneInString(tok); unicode.IsUpper(r) {
			proper++
		}
	}
	return float64(proper) / float64(len(tokens)), nil
}

var _ scorer.QueryScorer = (*ProperNounRatioScorer)(nil)
