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

	"github.com/lattice-vc/scout/internal/config"
	dbRedis "github.com/lattice-vc/scout/internal/db/redis"
	"github.com/lattice-vc/scout/internal/db/postgres"
	"github.com/lattice-vc/scout/internal/domain"
	logpkg "github.com/lattice-vc/scout/internal/logger"
	"github.com/lattice-vc/scout/internal/merge"
	"github.com/lattice-vc/scout/internal/metrics"
	"github.com/lattice-vc/scout/internal/normalize"
	catalogrepo "github.com/lattice-vc/scout/internal/repository/catalog"
	companyrepo "github.com/lattice-vc/scout/internal/repository/company"
	"github.com/lattice-vc/scout/internal/repository/embcache"
	searchrepo "github.com/lattice-vc/scout/internal/repository/search"
	searchlogrepo "github.com/lattice-vc/scout/internal/repository/searchlog"
	unknownrepo "github.com/lattice-vc/scout/internal/repository/unknown"
	vocabrepo "github.com/lattice-vc/scout/internal/repository/vocab"
	chiTransport "github.com/lattice-vc/scout/internal/transport/chi"
	openaiTransport "github.com/lattice-vc/scout/internal/transport/openai"
	analyticsuc "github.com/lattice-vc/scout/internal/usecase/analytics"
	curationuc "github.com/lattice-vc/scout/internal/usecase/curation"
	healthuc "github.com/lattice-vc/scout/internal/usecase/health"
	queryuc "github.com/lattice-vc/scout/internal/usecase/query"
	searchuc "github.com/lattice-vc/scout/internal/usecase/search"
	"github.com/lattice-vc/scout/internal/version"
	"github.com/lattice-vc/scout/internal/vocab"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting scout API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Database.Addrs),
	)

	// Search index store
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Search index not ready", zap.Error(err))
	}
	logger.Info("Connected to search index")

	// Record store
	pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to record store", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Connected to record store")

	metrics.RegisterPipelineMetrics()

	// Embedder chain: OpenAI provider wrapped by the Redis cache.
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	var queryEmbedder domain.Embedder = embcache.New(
		baseEmbedder, store, time.Duration(cfg.Embedding.CacheTTLHr)*time.Hour, logger)

	inference := openaiTransport.NewInference(&openaiTransport.InferenceConfig{
		APIKey:  cfg.Inference.APIKey,
		BaseURL: cfg.Inference.BaseURL,
		Model:   cfg.Inference.Model,
		Logger:  logger,
	})

	// Repositories
	catalogRepo := catalogrepo.NewRepository(store, store,
		cfg.Embedding.Dimensions, cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct, logger)
	if err := catalogRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure company index", zap.Error(err))
	}
	searchRepo := searchrepo.NewRepository(store)
	companyRepo := companyrepo.NewRepository(pool)
	vocabRepo := vocabrepo.NewRepository(pool)
	unknownRepo := unknownrepo.NewRepository(pool)
	searchLogRepo := searchlogrepo.NewRepository(pool)

	// Vocabulary snapshot
	vocabStore := vocab.NewStore(vocabRepo, logger)
	if err := vocabStore.Reload(ctx); err != nil {
		logger.Fatal("Failed to load vocabulary", zap.Error(err))
	}

	normalizer := normalize.New(normalize.Config{
		MinTokenOverlap: cfg.Normalize.MinTokenOverlap,
		MaxEditDistance: cfg.Normalize.MaxEditDistance,
		MinFuzzyLen:     cfg.Normalize.MinFuzzyLen,
	})
	merger := merge.New(merge.Config{ResetSimilarity: cfg.Merge.ResetSimilarity})

	// Use case services
	searchSvc := searchuc.New(searchRepo, queryEmbedder,
		cfg.Search.DefaultTopK, cfg.Search.MaxTopK, cfg.Search.EmptyQuerySortBy)
	pipelineSvc := queryuc.New(
		inference, inference, inference,
		searchSvc, companyRepo, unknownRepo, searchLogRepo,
		vocabStore, normalizer, merger, logger,
		time.Duration(cfg.Inference.ExtractionTimeoutSec)*time.Second,
		time.Duration(cfg.Inference.ExplanationTimeoutSec)*time.Second,
	)
	curationSvc := curationuc.New(unknownRepo, vocabRepo, vocabStore, logger)
	analyticsSvc := analyticsuc.New(searchLogRepo, 0)
	healthSvc := healthuc.New(store, pool, baseEmbedder)

	server := chiTransport.NewServer(pipelineSvc, curationSvc, analyticsSvc, healthSvc, vocabStore, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

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
