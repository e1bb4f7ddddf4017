package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/germanattanasio/answer-retrieval/internal/embedder"
	"github.com/germanattanasio/answer-retrieval/internal/llm"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	_ "github.com/germanattanasio/answer-retrieval/internal/scorer/builtin"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	featureFile string
	verbose     bool
	redisAddr   string
	ollamaURL   string
	embedModel  string
	llmModel    string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "scorerctl",
		Short: "Inspect and run feature scorers",
		Long: `scorerctl loads a scorer file the same way the service does and lets you
check the feature columns it produces or score a single query/document pair.

Example usage:
  scorerctl headers -f config/features.json
  scorerctl score -f config/features.json --query '{"q":"what is rust"}' --doc '{"id":"1","text":"Rust is a language."}'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.featureFile, "file", "f", "config/features.json", "scorer file (.json, .yaml or .yml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for RedisZScoreScorer")
	flags.StringVar(&opts.ollamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	flags.StringVar(&opts.embedModel, "embedding-model", "nomic-embed-text", "Ollama embedding model")
	flags.StringVar(&opts.llmModel, "llm-model", "llama3.2", "Ollama generation model")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-scorer timeout")

	root.AddCommand(
		newHeadersCmd(opts),
		newScoreCmd(opts),
		newTokenCmd(),
		newSubmissionsCmd(openPostgres),
	)
	return root
}

// loadRegistry builds the scorers of the configured file. The returned
// cleanup releases backend clients.
func (o *rootOptions) loadRegistry() (*scorer.Registry, func(), error) {
	deps := scorer.Deps{
		HTTPClient: &http.Client{Timeout: o.timeout},
		Embedder: embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: o.ollamaURL,
			Model:   o.embedModel,
		}),
		Generator: llm.NewOllama(llm.Config{
			BaseURL: o.ollamaURL,
			Model:   o.llmModel,
		}),
		Logger: slog.Default(),
	}
	cleanup := func() {}
	if o.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: o.redisAddr})
		deps.Redis = rdb
		cleanup = func() { _ = rdb.Close() }
	}

	registry, err := scorer.Load(o.featureFile, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return registry, cleanup, nil
}
