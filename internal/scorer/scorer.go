// Package scorer defines the pluggable feature scorer contract, the static
// factory registry scorers are built from, and the Registry that fixes the
// feature column order for the whole process.
package scorer

import (
	"context"
	"fmt"
	"strconv"
)

// Kind identifies which inputs a scorer consumes.
type Kind int

const (
	// KindDocument scorers see only the document.
	KindDocument Kind = iota
	// KindQuery scorers see only the query parameters.
	KindQuery
	// KindQueryDocument scorers see the query and the document together.
	KindQueryDocument
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindQuery:
		return "query"
	case KindQueryDocument:
		return "query_document"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configuration type name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "document":
		return KindDocument, nil
	case "query":
		return KindQuery, nil
	case "query_document":
		return KindQueryDocument, nil
	default:
		return 0, fmt.Errorf("unknown scorer type %q (expected \"document\", \"query\" or \"query_document\")", s)
	}
}

// Query holds the request parameters a query is issued with. "q" carries the
// query text; everything else is scorer specific.
type Query map[string]string

// Text returns the query text.
func (q Query) Text() string {
	return q["q"]
}

// Document is a single search result keyed by field name.
type Document map[string]any

// ID returns the document id rendered as a string.
func (d Document) ID() string {
	v, ok := d["id"]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// String returns a string field. Numbers are rendered, lists yield their first value.
func (d Document) String(field string) (string, bool) {
	v, ok := d[field]
	if !ok || v == nil {
		return "", false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return "", false
		}
		v = list[0]
	}
	return stringify(v), true
}

// Float returns a numeric field. String values are parsed; lists yield their first value.
func (d Document) Float(field string) (float64, bool) {
	v, ok := d[field]
	if !ok || v == nil {
		return 0, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return 0, false
		}
		v = list[0]
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Scorer is the identity every scorer exposes regardless of kind.
type Scorer interface {
	// Name is the human readable scorer name.
	Name() string
	// ShortName is the unique column name of the scorer's feature.
	ShortName() string
	// RequiredFields lists the document fields the scorer reads.
	RequiredFields() []string
}

// DocumentScorer extracts a signal from a single document.
type DocumentScorer interface {
	Scorer
	ScoreDocument(ctx context.Context, doc Document) (float64, error)
}

// QueryScorer extracts a signal from the query alone. The score is added as
// a feature of every document returned for that query.
type QueryScorer interface {
	Scorer
	ScoreQuery(ctx context.Context, query Query) (float64, error)
}

// QueryDocumentScorer scores the overlap between a query and a document.
type QueryDocumentScorer interface {
	Scorer
	ScoreQueryDocument(ctx context.Context, query Query, doc Document) (float64, error)
}

// Info carries the descriptive fields shared by all scorers and implements
// the identity half of Scorer. Built-in scorers embed it.
type Info struct {
	name        string
	shortName   string
	description string
}

// NewInfo reads name, short_name and description from init args, falling
// back to the given defaults.
func NewInfo(args Args, name, shortName string) Info {
	return Info{
		name:        args.String("name", name),
		shortName:   args.String("short_name", shortName),
		description: args.String("description", ""),
	}
}

func (i Info) Name() string        { return i.name }
func (i Info) ShortName() string   { return i.shortName }
func (i Info) Description() string { return i.description }

// Feature is one named value of a FeatureVector.
type Feature struct {
	Name  string
	Value float64
}

// FeatureVector holds one value per registered scorer, in Registry order.
type FeatureVector []Feature

// Values returns the raw values in column order.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = f.Value
	}
	return out
}
