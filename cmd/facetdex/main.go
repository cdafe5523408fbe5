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

	"github.com/kailas-cloud/facetdex/internal/config"
	dbRedis "github.com/kailas-cloud/facetdex/internal/db/redis"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
	"github.com/kailas-cloud/facetdex/internal/domain/search/overflow"
	logpkg "github.com/kailas-cloud/facetdex/internal/logger"
	"github.com/kailas-cloud/facetdex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/facetdex/internal/repository/catalog"
	rowrepo "github.com/kailas-cloud/facetdex/internal/repository/row"
	searchrepo "github.com/kailas-cloud/facetdex/internal/repository/search"
	chiTransport "github.com/kailas-cloud/facetdex/internal/transport/chi"
	batchuc "github.com/kailas-cloud/facetdex/internal/usecase/batch"
	cataloguc "github.com/kailas-cloud/facetdex/internal/usecase/catalog"
	entityuc "github.com/kailas-cloud/facetdex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/facetdex/internal/usecase/search"
	"github.com/kailas-cloud/facetdex/internal/version"
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

	logger.Info("Starting facetdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("document_model", cfg.Index.DocumentModel),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
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

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	sch, err := buildSchema(cfg.Schema)
	if err != nil {
		logger.Fatal("Invalid schema configuration", zap.Error(err))
	}

	// Create repositories (domain-native, no adapters)
	catalogRepo := catalogrepo.New(store)
	rowRepo := rowrepo.New(store)
	searchRepo := searchrepo.New(store)

	// The catalog owns the generation lifecycle. Opening validates the
	// persisted document model against the configured one, or bootstraps
	// a first generation from the schema.
	catalogSvc := cataloguc.New(catalogRepo, rowRepo, model.Model(cfg.Index.DocumentModel), sch, logger)
	if err := catalogSvc.EnsureOpen(ctx); err != nil {
		logger.Fatal("Failed to open catalog", zap.Error(err))
	}

	// Create use case services
	entitySvc := entityuc.New(rowRepo, catalogSvc)
	searchSvc := searchuc.New(searchRepo, catalogSvc).
		WithJoinLimits(cfg.Index.MaxCorrelationRows, cfg.Index.MaxJoinIDs).
		WithOverflowPolicy(overflow.Policy(cfg.Index.OverflowPolicy))
	searcher := searchuc.NewInstrumented(searchSvc, logger)
	batchSvc := batchuc.New(rowRepo, rowRepo, catalogSvc).
		WithMaxBatchSize(cfg.Index.MaxBatchSize)

	// Health service
	healthSvc := healthuc.New(store, newCatalogHealthChecker(catalogSvc))

	// Create chi server
	server := chiTransport.NewServer(entitySvc, searcher, batchSvc, catalogSvc, healthSvc, logger).
		WithPagination(cfg.Index.DefaultPageSize, cfg.Index.MaxPageSize).
		WithFacetValues(cfg.Index.DefaultFacetValues)

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

// buildSchema converts the declared field configuration into the domain schema.
func buildSchema(cfg config.SchemaConfig) (schema.Schema, error) {
	fields := make([]field.Field, len(cfg.Fields))
	for i, fc := range cfg.Fields {
		f, err := field.New(fc.Name, fc.Searchable, fc.Facetable, fc.Geometry, fc.Stored)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("field %q: %w", fc.Name, err)
		}
		fields[i] = f
	}
	return schema.New(fields)
}

// catalogHealthChecker wraps the catalog service to implement health.CatalogChecker.
type catalogHealthChecker struct {
	catalog *cataloguc.Service
}

func newCatalogHealthChecker(catalog *cataloguc.Service) *catalogHealthChecker {
	return &catalogHealthChecker{catalog: catalog}
}

func (h *catalogHealthChecker) Check(ctx context.Context) error {
	snap, err := h.catalog.Acquire()
	if err != nil {
		return fmt.Errorf("catalog health check: %w", err)
	}
	snap.Release()
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

// wideEventMiddleware emits a canonical log line per request and propagates
// X-Request-ID. It also seeds the query stats collector search handlers
// fill in, so the line carries the execution counters.
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
			ctx, stats := domain.NewContextWithQueryStats(ctx)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if stats.Model != "" {
				fields = append(fields,
					zap.String("model", stats.Model),
					zap.Int("rows_scanned", stats.RowsScanned),
					zap.Int("join_candidates", stats.JoinCandidates),
					zap.Bool("facet_partial", stats.FacetPartial),
				)
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}
