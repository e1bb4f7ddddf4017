package builtin

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// expression is a compiled CEL program over the variables doc and query.
// doc maps field names to values; query maps request parameters to strings.
type expression struct {
	source string
	prg    cel.Program
	fields []string
}

func compileExpression(args scorer.Args, vars ...string) (*expression, error) {
	source, err := args.RequireString("expression")
	if err != nil {
		return nil, err
	}
	fields, err := args.StringSlice("fields")
	if err != nil {
		return nil, err
	}

	opts := make([]cel.EnvOption, 0, len(vars))
	for _, v := range vars {
		opts = append(opts, cel.Variable(v, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating expression environment: %w", err)
	}
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &expression{source: source, prg: prg, fields: fields}, nil
}

func (e *expression) eval(ctx context.Context, input map[string]any) (float64, error) {
	out, _, err := e.prg.ContextEval(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("eval error: %w", err)
	}
	switch v := out.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expression must return a number, got %T", out.Value())
	}
}

func docInput(doc scorer.Document) map[string]any {
	return map[string]any(doc)
}

func queryInput(query scorer.Query) map[string]any {
	out := make(map[string]any, len(query))
	for k, v := range query {
		out[k] = v
	}
	return out
}

// DocumentExpressionScorer evaluates a CEL expression over doc.
type DocumentExpressionScorer struct {
	scorer.Info
	expr *expression
}

func newDocumentExpressionScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	expr, err := compileExpression(args, "doc")
	if err != nil {
		return nil, err
	}
	return &DocumentExpressionScorer{Info: scorer.NewInfo(args, "DocumentExpressionScorer", "dexpr"), expr: expr}, nil
}

func (s *DocumentExpressionScorer) RequiredFields() []string { return s.expr.fields }

func (s *DocumentExpressionScorer) ScoreDocument(ctx context.Context, doc scorer.Document) (float64, error) {
	return s.expr.eval(ctx, map[string]any{"doc": docInput(doc)})
}

// QueryExpressionScorer evaluates a CEL expression over query.
type QueryExpressionScorer struct {
	scorer.Info
	expr *expression
}

func newQueryExpressionScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	expr, err := compileExpression(args, "query")
	if err != nil {
		return nil, err
	}
	return &QueryExpressionScorer{Info: scorer.NewInfo(args, "QueryExpressionScorer", "qexpr"), expr: expr}, nil
}

func (s *QueryExpressionScorer) RequiredFields() []string { return s.expr.fields }

func (s *QueryExpressionScorer) ScoreQuery(ctx context.Context, query scorer.Query) (float64, error) {
	return s.expr.eval(ctx, map[string]any{"query": queryInput(query)})
}

// QueryDocumentExpressionScorer evaluates a CEL expression over query and doc.
type QueryDocumentExpressionScorer struct {
	scorer.Info
	expr *expression
}

func newQueryDocumentExpressionScorer(args scorer.Args, _ scorer.Deps) (scorer.Scorer, error) {
	expr, err := compileExpression(args, "query", "doc")
	if err != nil {
		return nil, err
	}
	return &QueryDocumentExpressionScorer{Info: scorer.NewInfo(args, "QueryDocumentExpressionScorer", "qdexpr"), expr: expr}, nil
}

func (s *QueryDocumentExpressionScorer) RequiredFields() []string { return s.expr.fields }

func (s *QueryDocumentExpressionScorer) ScoreQueryDocument(ctx context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	return s.expr.eval(ctx, map[string]any{"query": queryInput(query), "doc": docInput(doc)})
}

var (
	_ scorer.DocumentScorer      = (*DocumentExpressionScorer)(nil)
	_ scorer.QueryScorer         = (*QueryExpressionScorer)(nil)
	_ scorer.QueryDocumentScorer = (*QueryDocumentExpressionScorer)(nil)
)
