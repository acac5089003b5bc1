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

	"github.com/ivanmandinski/aisearch-sub001/internal/config"
	dbRedis "github.com/ivanmandinski/aisearch-sub001/internal/db/redis"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	logpkg "github.com/ivanmandinski/aisearch-sub001/internal/logger"
	"github.com/ivanmandinski/aisearch-sub001/internal/metrics"
	"github.com/ivanmandinski/aisearch-sub001/internal/repository/embcache"
	"github.com/ivanmandinski/aisearch-sub001/internal/repository/resultcache"
	"github.com/ivanmandinski/aisearch-sub001/internal/repository/rewritecache"
	searchrepo "github.com/ivanmandinski/aisearch-sub001/internal/repository/search"
	chiTransport "github.com/ivanmandinski/aisearch-sub001/internal/transport/chi"
	aiTransport "github.com/ivanmandinski/aisearch-sub001/internal/transport/openai"
	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/normalize"
	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/rerank"
	searchuc "github.com/ivanmandinski/aisearch-sub001/internal/usecase/search"
	"github.com/ivanmandinski/aisearch-sub001/internal/version"
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

	logger.Info("Starting aisearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the index store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterAIMetrics()

	// Build AI provider chain at the composition root
	cacheTTL := time.Duration(cfg.Search.CacheTTLSec) * time.Second

	var embedder domain.Embedder
	if cfg.AI.EmbeddingModel != "" {
		embedder = embcache.New(
			aiTransport.NewEmbedder(&aiTransport.EmbedderConfig{
				APIKey:     cfg.AI.APIKey,
				BaseURL:    cfg.AI.BaseURL,
				Model:      cfg.AI.EmbeddingModel,
				Dimensions: cfg.AI.EmbeddingDimensions,
				Provider:   cfg.AI.Provider,
				Logger:     logger,
			}),
			cfg.Search.AICacheSize, cacheTTL,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	var rewriter normalize.Rewriter
	if cfg.AI.RewriteModel != "" {
		rewriter = rewritecache.New(
			aiTransport.NewRewriter(&aiTransport.RewriterConfig{
				APIKey:   cfg.AI.APIKey,
				BaseURL:  cfg.AI.BaseURL,
				Model:    cfg.AI.RewriteModel,
				Provider: cfg.AI.Provider,
				Logger:   logger,
			}),
			cfg.Search.AICacheSize, cacheTTL,
			metrics.RewriteCacheTotal, logger,
		)
	}

	var reranker searchuc.Reranker
	if cfg.AI.RerankModel != "" {
		scorer := aiTransport.NewReranker(&aiTransport.RerankerConfig{
			APIKey:   cfg.AI.APIKey,
			BaseURL:  cfg.AI.BaseURL,
			Model:    cfg.AI.RerankModel,
			Provider: cfg.AI.Provider,
			Rubric: aiTransport.Rubric{
				Semantic:    cfg.AI.Rubric.Semantic,
				Intent:      cfg.AI.Rubric.Intent,
				Quality:     cfg.AI.Rubric.Quality,
				Specificity: cfg.AI.Rubric.Specificity,
			},
			Logger: logger,
		})
		reranker = rerank.New(scorer, time.Duration(cfg.AI.RerankTimeoutSec)*time.Second, logger)
	}
	logger.Info("AI providers created",
		zap.String("provider", cfg.AI.Provider),
		zap.String("embedding_model", cfg.AI.EmbeddingModel),
		zap.String("rewrite_model", cfg.AI.RewriteModel),
		zap.String("rerank_model", cfg.AI.RerankModel),
	)

	// Repository and pipeline services
	repo := searchrepo.New(store, cfg.Index.Name, cfg.Index.KeyPrefix)
	norm := normalize.New(rewriter, logger)
	cache := resultcache.New[searchuc.Entry](
		cfg.Search.CacheSize, cacheTTL,
		metrics.ResultCacheTotal, logger,
	)
	searchSvc := searchuc.New(repo, embedder, norm, reranker, cache, searchuc.Config{
		RetrievalLimit:      cfg.Search.RetrievalLimit,
		ConfidenceThreshold: cfg.Search.ConfidenceThreshold,
		LexicalWeight:       cfg.Search.LexicalWeight,
		SourcePriority:      cfg.Search.SourcePriority,
	}, metrics.RerankTotal, logger)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

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
						"error": "internal error",
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

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
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
