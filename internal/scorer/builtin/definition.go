package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/text"
)

// Aggregation strategies over per-sentence scores.
const (
	StrategyMax     = "max"
	StrategyAverage = "average"
)

var (
	whatIsQuery     = regexp.MustCompile(`^what is (.+)$`)
	definitionQuery = regexp.MustCompile(`^what (?:is|are|am|was) (.+)$`)
	definingClause  = regexp.MustCompile(`^(.*) (?:is|are|am|was) .*$`)
)

// sentenceScores scores every sentence of a document field and folds the
// scores with a strategy.
type sentenceScores struct {
	field    string
	strategy string
}

func newSentenceScores(args scorer.Args) (sentenceScores, error) {
	s := sentenceScores{
		field:    args.String("field", "text"),
		strategy: args.String("strategy", StrategyMax),
	}
	if s.strategy != StrategyMax && s.strategy != StrategyAverage {
		return s, fmt.Errorf("strategy must be %q or %q, got %q", StrategyMax, StrategyAverage, s.strategy)
	}
	return s, nil
}

func (s sentenceScores) RequiredFields() []string { return []string{s.field} }

func (s sentenceScores) fold(doc scorer.Document, score func(sentence string) float64) float64 {
	body, _ := doc.String(s.field)
	sentences := text.SplitSentences(body)
	if len(sentences) == 0 {
		return 0
	}
	var best, sum float64
	for _, sent := range sentences {
		v := score(strings.ToLower(sent))
		sum += v
		if v > best {
			best = v
		}
	}
	if s.strategy == StrategyAverage {
		return sum / float64(len(sentences))
	}
	return best
}

// normalizeQuery lower-cases q and drops trailing question marks.
func normalizeQuery(q string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(q)), "?! ")
}

// WhatIsScorer scores "what is X" questions by the sentences of the
// document that read "X is ...".
type WhatIsScorer struct {
	scorer.Info
	sentenceScores
}

func newWhatIsScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	ss, err := newSentenceScores(args)
	if err != nil {
		return nil, err
	}
	return &WhatIsScorer{Info: scorer.NewInfo(args, "WhatIsScorer", "wis"), sentenceScores: ss}, nil
}

func (s *WhatIsScorer) ScoreQueryDocument(_ context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	q, err := queryText(query)
	if err != nil {
		return 0, err
	}
	m := whatIsQuery.FindStringSubmatch(normalizeQuery(q))
	if m == nil {
		return 0, nil
	}
	answer, err := regexp.Compile(`^` + regexp.QuoteMeta(m[1]) + ` (?:is|are|am|was) `)
	if err != nil {
		return 0, err
	}
	return s.fold(doc, func(sent string) float64 {
		if answer.MatchString(sent) {
			return 1
		}
		return 0
	}), nil
}

// QueryDefinitionScorer scores definition questions by the word overlap
// between the term to define and the subject of each defining sentence.
type QueryDefinitionScorer struct {
	scorer.Info
	sentenceScores
}

func newQueryDefinitionScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	ss, err := newSentenceScores(args)
	if err != nil {
		return nil, err
	}
	return &QueryDefinitionScorer{Info: scorer.NewInfo(args, "QueryDefinitionScorer", "qds"), sentenceScores: ss}, nil
}

func (s *QueryDefinitionScorer) ScoreQueryDocument(_ context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	q, ok := query["q"]
	if !ok {
		return 0, nil
	}
	m := definitionQuery.FindStringSubmatch(normalizeQuery(q))
	if m == nil {
		return 0, nil
	}
	term := m[1]
	return s.fold(doc, func(sent string) float64 {
		clause := definingClause.FindStringSubmatch(sent)
		if clause == nil {
			return 0
		}
		return text.Similarity(clause[1], term)
	}), nil
}

var (
	_ scorer.QueryDocumentScorer = (*WhatIsScorer)(nil)
	_ scorer.QueryDocumentScorer = (*QueryDefinitionScorer)(nil)
)
