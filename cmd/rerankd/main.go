package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/germanattanasio/answer-retrieval/internal/auth"
	"github.com/germanattanasio/answer-retrieval/internal/config"
	"github.com/germanattanasio/answer-retrieval/internal/embedder"
	"github.com/germanattanasio/answer-retrieval/internal/engine"
	"github.com/germanattanasio/answer-retrieval/internal/llm"
	"github.com/germanattanasio/answer-retrieval/internal/metrics"
	"github.com/germanattanasio/answer-retrieval/internal/ranker"
	"github.com/germanattanasio/answer-retrieval/internal/repository"
	"github.com/germanattanasio/answer-retrieval/internal/repository/postgres"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	_ "github.com/germanattanasio/answer-retrieval/internal/scorer/builtin"
	"github.com/germanattanasio/answer-retrieval/internal/server"
	"github.com/germanattanasio/answer-retrieval/internal/service"
	"github.com/germanattanasio/answer-retrieval/internal/upstream"
	"github.com/germanattanasio/answer-retrieval/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting answer retrieval service",
		"http_port", cfg.Port(),
		"environment", cfg.Environment,
		"feature_file", cfg.FeatureFile,
	)

	checks := make(map[string]server.CheckFunc)
	var opts []service.Option

	// PostgreSQL is optional; without it submissions are not audited
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, service.WithSubmissions(postgres.NewSubmissionRepo(db.Pool)))
		checks["database"] = db.Ping
		slog.Info("connected to PostgreSQL")
	}

	deps := scorer.Deps{
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		Embedder: embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaEmbeddingModel,
		}),
		Generator: llm.NewOllama(llm.Config{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaLLMModel,
		}),
		Logger: slog.Default(),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		deps.Redis = rdb
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		slog.Info("initialized Redis client", "addr", cfg.RedisAddr)
	}

	if cfg.QdrantGRPCURL != "" {
		vectorStore, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			URL:            cfg.QdrantGRPCURL,
			APIKey:         cfg.QdrantAPIKey,
			MaxMessageSize: cfg.QdrantMaxMessageSize,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		defer vectorStore.Close()
		deps.Vectors = vectorStore
		checks["qdrant"] = vectorStore.Ping
		slog.Info("connected to Qdrant")
	}

	// Build the scorers; any configuration error is fatal
	registry, err := scorer.Load(cfg.FeatureFile, deps)
	if err != nil {
		return fmt.Errorf("failed to load scorers: %w", err)
	}
	slog.Info("loaded scorers", "count", registry.Len(), "headers", registry.Headers())

	// Metrics on a dedicated registry
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics()
	if err := m.Register(promRegistry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	scoring := engine.New(registry, engine.Config{
		Workers:  cfg.ScorerWorkers,
		Timeout:  cfg.ScorerTimeout,
		Observer: m,
		Logger:   slog.Default(),
	})

	search := upstream.NewClient(
		upstream.WithBaseURL(cfg.SearchBaseURL),
		upstream.WithCredentials(cfg.SearchUsername, cfg.SearchPassword),
		upstream.WithCollection(cfg.SolrClusterID, cfg.SolrCollection),
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
	)
	rk := ranker.NewClient(ranker.Config{
		BaseURL:  cfg.SearchBaseURL,
		Username: cfg.SearchUsername,
		Password: cfg.SearchPassword,
		Timeout:  cfg.UpstreamTimeout,
		Logger:   slog.Default(),
	})

	opts = append(opts, service.WithLogger(slog.Default()), service.WithObserver(m))
	svc := service.NewFCSelectService(search, scoring, rk, service.Config{
		DefaultFL:         cfg.DefaultFL,
		DefaultSearchRows: cfg.DefaultRows,
		DefaultRankerID:   cfg.RankerID,
		AnswerDir:         cfg.AnswerDir,
	}, opts...)

	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}
	authenticator := auth.NewAuthenticator(cfg.APIKeys, jwtManager)
	if !authenticator.Enabled() {
		slog.Warn("no API keys or JWT secret configured, API routes are unauthenticated")
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.Port(),
		Logger:         slog.Default(),
		AllowedOrigins: cfg.AllowedOrigins,
		Service:        svc,
		Auth:           authenticator.Middleware,
		Gatherer:       promRegistry,
		Checks:         checks,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.SubmissionRepository = (*postgres.SubmissionRepo)(nil)
	_ scorer.SimilaritySearcher       = (*vectorstore.QdrantStore)(nil)
	_ scorer.Embedder                 = (*embedder.OllamaEmbedder)(nil)
	_ scorer.Generator                = (*llm.Ollama)(nil)
	_ service.FeatureScorer           = (*engine.Engine)(nil)
	_ ranker.Ranker                   = (*ranker.Client)(nil)
	_ service.Searcher                = (*upstream.Client)(nil)
)
