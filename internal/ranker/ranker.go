// Package ranker submits augmented answer files to an external ranking
// model and returns its ordering.
//
// The ranker sees each candidate document as one CSV row: the document id
// followed by every feature value, base features first and scorer features
// after them. It answers with the same ids in ranked order, each with a
// confidence.
package ranker

import (
	"context"
	"io"
)

// Answer is one ranked document.
type Answer struct {
	AnswerID   string
	Confidence float64
}

// Ranker ranks the answers in an answer file.
type Ranker interface {
	// Rank submits the answer file read from data, named filename, to the
	// ranker identified by rankerID. Answers are returned best first.
	Rank(ctx context.Context, rankerID, filename string, data io.Reader) ([]Answer, error)
}
