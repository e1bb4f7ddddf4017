package scorer

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SimilaritySearcher scores a query vector against the stored vectors of a
// single document.
type SimilaritySearcher interface {
	DocumentSimilarity(ctx context.Context, collection string, vector []float32, documentID string) (float32, bool, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Deps are the shared backends a factory may hand to the scorer it builds.
// Any of them may be nil; factories that need a missing backend fail with a
// configuration error.
type Deps struct {
	HTTPClient *http.Client
	Redis      redis.Cmdable
	Embedder   Embedder
	Vectors    SimilaritySearcher
	Generator  Generator
	Logger     *slog.Logger
}

// Factory builds a scorer from its init args.
type Factory func(args Args, deps Deps) (Scorer, error)

var (
	factories   = make(map[string]Factory)
	factoriesMu sync.RWMutex
)

// Register makes a scorer class available to Build under the given name.
// Built-in classes register themselves from init. Registering a name twice
// replaces the previous factory.
func Register(class string, factory Factory) {
	if class == "" || factory == nil {
		return
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[class] = factory
}

// SupportedTypes returns the registered class names, sorted.
func SupportedTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	classes := make([]string, 0, len(factories))
	for c := range factories {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

func lookupFactory(class string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[class]
	return f, ok
}
