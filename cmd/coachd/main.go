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

	"github.com/mindfit/coachd/internal/config"
	"github.com/mindfit/coachd/internal/db"
	dbRedis "github.com/mindfit/coachd/internal/db/redis"
	"github.com/mindfit/coachd/internal/domain"
	logpkg "github.com/mindfit/coachd/internal/logger"
	"github.com/mindfit/coachd/internal/metrics"
	"github.com/mindfit/coachd/internal/passage"
	"github.com/mindfit/coachd/internal/repository/embcache"
	"github.com/mindfit/coachd/internal/retriever"
	chiTransport "github.com/mindfit/coachd/internal/transport/chi"
	openaiTransport "github.com/mindfit/coachd/internal/transport/openai"
	answeruc "github.com/mindfit/coachd/internal/usecase/answer"
	healthuc "github.com/mindfit/coachd/internal/usecase/health"
	"github.com/mindfit/coachd/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting coachd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("knowledge_path", cfg.Knowledge.Path),
	)

	// Register AI metrics explicitly (no init())
	metrics.RegisterAIMetrics()

	// Load the knowledge base. A missing or corrupt file keeps the server up
	// but degraded; /health reports it and /api/coach returns 503.
	store, err := passage.Load(cfg.Knowledge.Path)
	if err != nil {
		logger.Warn("Knowledge base unavailable, starting degraded",
			zap.String("path", cfg.Knowledge.Path),
			zap.Error(err),
		)
		store = passage.Unavailable(err)
	} else {
		logger.Info("Knowledge base loaded", zap.Int("passages", store.Len()))
	}

	// Optional embedding cache
	var kvStore db.Store
	if len(cfg.Cache.Addrs) > 0 {
		kvStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer kvStore.Close()

		ctx := context.Background()
		if err := kvStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Build embedder chain — composition root
	requestTimeout := time.Duration(cfg.AI.RequestTimeoutSec) * time.Second
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Embedding.Model,
		Dimensions: cfg.AI.Embedding.Dimensions,
		Timeout:    requestTimeout,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if kvStore != nil {
		embedder = embcache.New(base, kvStore, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.AI.Embedding.Model),
		zap.Bool("cached", kvStore != nil),
	)

	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Completion.Model,
		MaxTokens:   cfg.AI.Completion.MaxTokens,
		Temperature: cfg.AI.Completion.Temperature,
		Stop:        cfg.AI.Completion.Stop,
		Timeout:     requestTimeout,
		Logger:      logger,
	})

	// Retriever with structural unit filtering ("Week 3" queries prefer
	// passages from that week)
	ret := retriever.New(store, cfg.Knowledge.TopK).
		WithFilter(retriever.NewUnitFilter(cfg.Knowledge.MarkerLabel), metrics.RetrievalFilterTotal)

	// Use case services
	answerSvc := answeruc.New(embedder, ret, completer)
	healthSvc := healthuc.New(store, newProviderHealthChecker(embedder))

	// Create chi server
	server := chiTransport.NewServer(answerSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
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

// providerHealthChecker wraps domain.Embedder to implement health.ProviderChecker.
type providerHealthChecker struct {
	embedder domain.Embedder
}

func newProviderHealthChecker(embedder domain.Embedder) *providerHealthChecker {
	return &providerHealthChecker{embedder: embedder}
}

func (h *providerHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("provider health check: %w", err)
		}
	}
	return nil
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
