// Package vectorstore looks up stored document embeddings for similarity
// features.
package vectorstore

import (
	"context"
)

// DocumentIDField is the payload key holding the search document id of a point.
const DocumentIDField = "document_id"

// Store scores a query vector against the embeddings stored for one document.
type Store interface {
	// DocumentSimilarity returns the best similarity between vector and any
	// point of documentID in collection. ok is false when the document has
	// no stored points.
	DocumentSimilarity(ctx context.Context, collection string, vector []float32, documentID string) (score float32, ok bool, err error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
