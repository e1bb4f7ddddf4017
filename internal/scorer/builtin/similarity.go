package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/germanattanasio/answer-retrieval/internal/memory"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// VectorSimilarityScorer embeds the query and returns its similarity to the
// stored embedding of the document.
type VectorSimilarityScorer struct {
	scorer.Info
	embedder   scorer.Embedder
	vectors    scorer.SimilaritySearcher
	collection string
	missing    float64
	embeddings *memory.Cache[string, []float32]
}

func newVectorSimilarityScorer(args scorer.Args, deps scorer.Deps) (scorer.Scorer, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("vector store is not configured")
	}
	collection, err := args.RequireString("collection")
	if err != nil {
		return nil, err
	}
	missing, err := args.Float("default", 0)
	if err != nil {
		return nil, err
	}
	size, err := args.Int("cache_size", memory.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	return &VectorSimilarityScorer{
		Info:       scorer.NewInfo(args, "VectorSimilarityScorer", "vss"),
		embedder:   deps.Embedder,
		vectors:    deps.Vectors,
		collection: collection,
		missing:    missing,
		embeddings: memory.NewCache[string, []float32](size),
	}, nil
}

func (s *VectorSimilarityScorer) RequiredFields() []string { return []string{"id"} }

func (s *VectorSimilarityScorer) ScoreQueryDocument(ctx context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	q, err := queryText(query)
	if err != nil {
		return 0, err
	}
	id := doc.ID()
	if id == "" {
		return 0, fmt.Errorf("document has no id")
	}
	vec, err := s.embeddings.GetOrLoad(q, func() ([]float32, error) {
		return s.embedder.Embed(ctx, q)
	})
	if err != nil {
		return 0, fmt.Errorf("embedding query: %w", err)
	}
	score, ok, err := s.vectors.DocumentSimilarity(ctx, s.collection, vec, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return s.missing, nil
	}
	return float64(score), nil
}

const defaultMaxChars = 500

// LLMRelevanceScorer asks a language model how relevant a document field is
// to the query, on a 0..1 scale.
type LLMRelevanceScorer struct {
	scorer.Info
	generator scorer.Generator
	field     string
	maxChars  int
}

func newLLMRelevanceScorer(args scorer.Args, deps scorer.Deps) (scorer.Scorer, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("language model is not configured")
	}
	maxChars, err := args.Int("max_chars", defaultMaxChars)
	if err != nil {
		return nil, err
	}
	return &LLMRelevanceScorer{
		Info:      scorer.NewInfo(args, "LLMRelevanceScorer", "llmr"),
		generator: deps.Generator,
		field:     args.String("field", "text"),
		maxChars:  maxChars,
	}, nil
}

func (s *LLMRelevanceScorer) RequiredFields() []string { return []string{s.field} }

func (s *LLMRelevanceScorer) ScoreQueryDocument(ctx context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	q, err := queryText(query)
	if err != nil {
		return 0, err
	}
	content, _ := doc.String(s.field)
	content = truncateChars(content, s.maxChars)

	out, err := s.generator.Generate(ctx, relevancePrompt(q, content))
	if err != nil {
		return 0, fmt.Errorf("LLM relevance failed: %w", err)
	}
	return parseRelevance(out)
}

// truncateChars cuts s to at most max characters, marking the cut with "...".
func truncateChars(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	end := 0
	for n := 0; n < max; n++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[:end] + "..."
}

func relevancePrompt(query, content string) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance scoring system. Score how well the document answers the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocument: ")
	sb.WriteString(content)
	sb.WriteString(`

Score the document from 0.0 to 1.0. Irrelevant documents score below 0.3,
somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output ONLY valid JSON in this exact format: {"score": 0.5}`)
	return sb.String()
}

// parseRelevance extracts the score from a model answer, unwrapping a
// fenced code block if present, and clamps it to [0, 1].
func parseRelevance(response string) (float64, error) {
	response = strings.TrimSpace(response)
	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if strings.HasPrefix(response[start:], "json") {
			start += 4
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	var parsed struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse relevance response: %w", err)
	}
	if parsed.Score == nil {
		return 0, fmt.Errorf("relevance response has no score")
	}
	return min(max(*parsed.Score, 0), 1), nil
}

var (
	_ scorer.QueryDocumentScorer = (*VectorSimilarityScorer)(nil)
	_ scorer.QueryDocumentScorer = (*LLMRelevanceScorer)(nil)
)
