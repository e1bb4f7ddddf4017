package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/text"
)

// UpVoteScorer maps the upModVotes field onto a 0..1 bucket scale.
type UpVoteScorer struct {
	scorer.Info
	field string
}

func newUpVoteScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	return &UpVoteScorer{
		Info:  scorer.NewInfo(args, "UpVoteScorer", "uvs"),
		field: args.String("field", "upModVotes"),
	}, nil
}

func (s *UpVoteScorer) RequiredFields() []string { return []string{s.field} }

func (s *UpVoteScorer) ScoreDocument(_ context.Context, doc scorer.Document) (float64, error) {
	votes, ok := doc.Float(s.field)
	if !ok {
		return 0, nil
	}
	switch {
	case votes <= 0:
		return 0, nil
	case votes <= 3:
		return 0.15, nil
	case votes <= 5:
		return 0.35, nil
	case votes <= 8:
		return 0.55, nil
	case votes <= 11:
		return 0.75, nil
	case votes <= 14:
		return 0.85, nil
	default:
		return 1, nil
	}
}

// PopularityScorer rates a post by its view count and whether it has an
// accepted answer.
type PopularityScorer struct {
	scorer.Info
}

func newPopularityScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	return &PopularityScorer{Info: scorer.NewInfo(args, "PopularityScorer", "ps")}, nil
}

func (s *PopularityScorer) RequiredFields() []string { return []string{"views", "accepted"} }

func (s *PopularityScorer) ScoreDocument(_ context.Context, doc scorer.Document) (float64, error) {
	views, ok := doc.Float("views")
	if !ok || views < 0 {
		return 0, nil
	}
	accepted, _ := doc.Float("accepted")
	switch {
	case accepted < 0 && views > 100 && views <= 2000:
		return 0.25, nil
	case accepted > 0 && views > 0 && views <= 2000:
		return 0.5, nil
	case accepted > 0 && views > 2000 && views <= 5000:
		return 0.75, nil
	case accepted > 0 && views > 5000:
		return 1, nil
	default:
		return 0, nil
	}
}

// TotalDocumentWordsScorer counts the words of a text field, by default
// without stop words.
type TotalDocumentWordsScorer struct {
	scorer.Info
	field       string
	includeStop bool
}

func newTotalDocumentWordsScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	includeStop, err := args.Bool("include_stop", false)
	if err != nil {
		return nil, err
	}
	return &TotalDocumentWordsScorer{
		Info:        scorer.NewInfo(args, "TotalDocumentWordsScorer", "tdw"),
		field:       args.String("field", "text"),
		includeStop: includeStop,
	}, nil
}

func (s *TotalDocumentWordsScorer) RequiredFields() []string { return []string{s.field} }

func (s *TotalDocumentWordsScorer) ScoreDocument(_ context.Context, doc scorer.Document) (float64, error) {
	body, _ := doc.String(s.field)
	return float64(len(text.Words(body, s.includeStop))), nil
}

// RedisZScoreScorer reads a precomputed per-document score from a Redis
// sorted set keyed by document id.
type RedisZScoreScorer struct {
	scorer.Info
	rdb  redis.Cmdable
	key  string
	def  float64
	from string
}

func newRedisZScoreScorer(args scorer.Args, deps scorer.Deps) (scorer.Scorer, error) {
	if deps.Redis == nil {
		return nil, fmt.Errorf("redis is not configured")
	}
	key, err := args.RequireString("key")
	if err != nil {
		return nil, err
	}
	def, err := args.Float("default", 0)
	if err != nil {
		return nil, err
	}
	return &RedisZScoreScorer{
		Info: scorer.NewInfo(args, "RedisZScoreScorer", "rzs"),
		rdb:  deps.Redis,
		key:  key,
		def:  def,
		from: args.String("member_field", "id"),
	}, nil
}

func (s *RedisZScoreScorer) RequiredFields() []string { return []string{s.from} }

func (s *RedisZScoreScorer) ScoreDocument(ctx context.Context, doc scorer.Document) (float64, error) {
	member, ok := doc.String(s.from)
	if !ok || member == "" {
		return s.def, nil
	}
	score, err := s.rdb.ZScore(ctx, s.key, member).Result()
	if errors.Is(err, redis.Nil) {
		return s.def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("zscore %s %s: %w", s.key, member, err)
	}
	return score, nil
}

var (
	_ scorer.DocumentScorer = (*UpVoteScorer)(nil)
	_ scorer.DocumentScorer = (*PopularityScorer)(nil)
	_ scorer.DocumentScorer = (*TotalDocumentWordsScorer)(nil)
	_ scorer.DocumentScorer = (*RedisZScoreScorer)(nil)
)
