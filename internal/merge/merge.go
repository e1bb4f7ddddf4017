// Package merge folds freshly computed feature vectors into search results:
// into each document's featureVector field and into the row-oriented
// training blob returned alongside them.
package merge

import (
	"fmt"
	"strings"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// FeatureVectorField is the document field holding the space separated
// feature values.
const FeatureVectorField = "featureVector"

// AlignmentError reports that score rows and documents or blob lines do not
// line up one to one.
type AlignmentError struct {
	Msg string
}

func (e *AlignmentError) Error() string {
	return "feature alignment: " + e.Msg
}

func alignErrorf(format string, args ...any) *AlignmentError {
	return &AlignmentError{Msg: fmt.Sprintf(format, args...)}
}

// FormatScore renders a score the way it is written into feature vectors
// and training rows: four decimals when positive, "0.0" otherwise.
func FormatScore(v float64) string {
	if v > 0 {
		return fmt.Sprintf("%.4f", v)
	}
	return "0.0"
}

// FormatScores renders every value of vec with FormatScore.
func FormatScores(vec scorer.FeatureVector) []string {
	out := make([]string, len(vec))
	for i, f := range vec {
		out[i] = FormatScore(f.Value)
	}
	return out
}

// MergeDocumentVectors appends the formatted scores of vectors[i] to the
// featureVector field of docs[i], then removes the suppressed fields from
// every document. Documents are modified in place.
func MergeDocumentVectors(docs []scorer.Document, vectors []scorer.FeatureVector, suppressed []string) error {
	if len(docs) != len(vectors) {
		return alignErrorf("%d documents but %d score rows", len(docs), len(vectors))
	}
	for i, doc := range docs {
		base, _ := doc.String(FeatureVectorField)
		doc[FeatureVectorField] = appendScores(base, vectors[i])
		for _, f := range suppressed {
			delete(doc, f)
		}
	}
	return nil
}

func appendScores(base string, vec scorer.FeatureVector) string {
	scores := strings.Join(FormatScores(vec), " ")
	if base == "" {
		return scores
	}
	if scores == "" {
		return base
	}
	return base + " " + scores
}

// AugmentHeader splits a blob header line into its feature columns and label
// column and appends headers to the feature columns.
func AugmentHeader(line string, headers []string) ([]string, string, error) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil, "", alignErrorf("header line is empty")
	}
	base, label := splitLine(line)
	return append(base, headers...), label, nil
}

// FeatureRow returns the base feature values of a document's featureVector
// field followed by the formatted values of vec.
func FeatureRow(featureVector string, vec scorer.FeatureVector) []string {
	base := strings.Fields(featureVector)
	return append(base, FormatScores(vec)...)
}
