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

	"github.com/kailas-cloud/spooltrack/internal/config"
	dbRedis "github.com/kailas-cloud/spooltrack/internal/db/redis"
	logpkg "github.com/kailas-cloud/spooltrack/internal/logger"
	"github.com/kailas-cloud/spooltrack/internal/metrics"
	"github.com/kailas-cloud/spooltrack/internal/poll"
	spoolrepo "github.com/kailas-cloud/spooltrack/internal/repository/spool"
	chiTransport "github.com/kailas-cloud/spooltrack/internal/transport/chi"
	"github.com/kailas-cloud/spooltrack/internal/transport/printer"
	healthuc "github.com/kailas-cloud/spooltrack/internal/usecase/health"
	registryuc "github.com/kailas-cloud/spooltrack/internal/usecase/registry"
	sessionuc "github.com/kailas-cloud/spooltrack/internal/usecase/session"
	trackeruc "github.com/kailas-cloud/spooltrack/internal/usecase/tracker"
	undouc "github.com/kailas-cloud/spooltrack/internal/usecase/undo"
	"github.com/kailas-cloud/spooltrack/internal/version"
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

	logger.Info("Starting spooltrack API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Int("slots", cfg.Tracking.Slots),
	)

	// One rueidis-backed store serves both Redis and Valkey; only plain hash
	// and KV commands are used.
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

	// Register metrics explicitly (no init())
	metrics.RegisterTrackingMetrics()
	metrics.RegisterPrinterMetrics()
	metrics.RegisterHTTPMetrics()

	// Repository + registry
	repo := spoolrepo.New(store, cfg.Tracking.HistoryCap).WithKeyPrefix(cfg.Storage.KeyPrefix)

	registrySvc := registryuc.New(repo, cfg.Tracking.Slots, logger)
	if err := registrySvc.Load(ctx); err != nil {
		logger.Fatal("Failed to load spool registry", zap.Error(err))
	}

	// Engine services
	trackerSvc := trackeruc.New(registrySvc, repo, cfg.Tracking.SanityCeilingMM, logger)
	if err := trackerSvc.Load(ctx); err != nil {
		logger.Fatal("Failed to load telemetry counter", zap.Error(err))
	}
	sessionSvc := sessionuc.New(registrySvc, logger)
	undoSvc := undouc.New(registrySvc, logger)

	// Printer telemetry source + poll loop (skipped when no printer configured)
	var printerClient *printer.Client
	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	if cfg.Printer.BaseURL != "" {
		printerClient = printer.NewClient(&printer.Config{
			BaseURL: cfg.Printer.BaseURL,
			APIKey:  cfg.Printer.APIKey,
			Timeout: time.Duration(cfg.Printer.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		poller := poll.New(
			printerClient, trackerSvc, sessionSvc,
			time.Duration(cfg.Printer.PollIntervalSec)*time.Second, logger,
		)
		go poller.Run(pollCtx)
		logger.Info("Telemetry poll loop started",
			zap.String("printer", cfg.Printer.BaseURL),
			zap.Int("interval_sec", cfg.Printer.PollIntervalSec),
		)
	} else {
		logger.Warn("No printer configured, telemetry polling disabled")
	}

	// Health service (printerClient may be a typed nil — pass the interface
	// only when set)
	var printerChecker healthuc.PrinterChecker
	if printerClient != nil {
		printerChecker = printerClient
	}
	healthSvc := healthuc.New(store, printerChecker)

	// Create chi server
	server := chiTransport.NewServer(registrySvc, sessionSvc, undoSvc, healthSvc, cfg.Tracking.AutoLockDefault(), logger)

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
	stopPoll()

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
