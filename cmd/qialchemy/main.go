package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/config"
	"github.com/marysss1/QiAIchemy-backend/internal/db"
	dbRedis "github.com/marysss1/QiAIchemy-backend/internal/db/redis"
	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	"github.com/marysss1/QiAIchemy-backend/internal/graph"
	logpkg "github.com/marysss1/QiAIchemy-backend/internal/logger"
	"github.com/marysss1/QiAIchemy-backend/internal/metrics"
	"github.com/marysss1/QiAIchemy-backend/internal/repository/embcache"
	passagerepo "github.com/marysss1/QiAIchemy-backend/internal/repository/passage"
	chiTransport "github.com/marysss1/QiAIchemy-backend/internal/transport/chi"
	openaiProvider "github.com/marysss1/QiAIchemy-backend/internal/transport/openai"
	answeruc "github.com/marysss1/QiAIchemy-backend/internal/usecase/answer"
	embeddinguc "github.com/marysss1/QiAIchemy-backend/internal/usecase/embedding"
	healthuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/health"
	ingestuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/ingest"
	retrievaluc "github.com/marysss1/QiAIchemy-backend/internal/usecase/retrieval"
	"github.com/marysss1/QiAIchemy-backend/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting QiAIchemy API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("graph_path", cfg.Graph.Path),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	passages := passagerepo.New(store)
	if err := passages.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure passage index", zap.Error(err))
	}

	// Embedder chain — composition root. No provider means lexical-only mode.
	var queryEmbedder, docEmbedder domain.Embedder
	var healthChecker healthuc.ProviderChecker
	if cfg.Embedding.APIKey != "" {
		base := openaiProvider.NewEmbedder(&openaiProvider.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		healthChecker = base
		queryEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
		docEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("No embedding provider configured, retrieval runs in lexical-only mode")
	}

	// Concept graph analyzer. A missing graph file degrades to zero-confidence
	// features instead of failing startup.
	graphs := graph.NewAnalyzer(graph.NewRepository(), cfg.Graph.Path, graph.Params{
		BaseAlpha:    cfg.Graph.PPRAlpha,
		BaseTopNodes: cfg.Graph.TopNodes,
	}, logger)

	policy := retrievaluc.DefaultFusionPolicy()
	policy.MinGraphConfidence = cfg.Retrieval.MinGraphConfidence
	policy.MaxGraphWeight = cfg.Retrieval.MaxGraphWeight
	policy.RRFGraphWeight = cfg.Retrieval.RRFGraphWeight

	var retrievalEmbedder retrievaluc.Embedder
	if queryEmbedder != nil {
		retrievalEmbedder = queryEmbedder
	}
	retrievalSvc := retrievaluc.New(passages, retrievalEmbedder, graphs, logger).
		WithPolicy(policy).
		WithLimits(cfg.Retrieval.CandidateLimit, cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK)

	var ingestEmbedder ingestuc.Embedder
	if docEmbedder != nil {
		ingestEmbedder = embeddingBatcher{docEmbedder}
	}
	ingestSvc := ingestuc.New(passages, ingestEmbedder, logger).
		WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	var answerSvc *answeruc.Service
	if cfg.Completion.Model != "" {
		completer := openaiProvider.NewCompleter(&openaiProvider.CompleterConfig{
			APIKey:      cfg.Completion.APIKey,
			BaseURL:     cfg.Completion.BaseURL,
			Model:       cfg.Completion.Model,
			Temperature: cfg.Completion.Temperature,
			MaxTokens:   cfg.Completion.MaxTokens,
			Logger:      logger,
		})
		answerSvc = answeruc.New(retrievalSvc, completer, logger)
		logger.Info("Completion provider created", zap.String("model", cfg.Completion.Model))
	} else {
		logger.Warn("No completion model configured, /v1/ask is disabled")
	}

	healthSvc := healthuc.New(store, healthChecker, passages)

	server := chiTransport.NewServer(
		answerService(answerSvc), retrievalSvc, ingestService(ingestSvc), healthSvc, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// answerService passes a nil interface (not a typed nil pointer) to the
// transport when answering is not configured.
func answerService(svc *answeruc.Service) chiTransport.AskService {
	if svc == nil {
		return nil
	}
	return svc
}

func ingestService(svc *ingestuc.Service) chiTransport.IngestService {
	if svc == nil {
		return nil
	}
	return svc
}

// embeddingBatcher adapts a domain.Embedder that may also batch to the
// ingest embedder contract.
type embeddingBatcher struct {
	inner domain.Embedder
}

func (b embeddingBatcher) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := b.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, b.inner, texts)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base *openaiProvider.Embedder,
	embCfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	// Cached
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (logging + batching limits)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embCfg.Provider, embCfg.Model, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
