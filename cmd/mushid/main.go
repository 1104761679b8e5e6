package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mushi/internal/bootstrap"
	"github.com/kailas-cloud/mushi/internal/config"
	logpkg "github.com/kailas-cloud/mushi/internal/logger"
	"github.com/kailas-cloud/mushi/internal/metrics"
	"github.com/kailas-cloud/mushi/internal/repository/journal"
	"github.com/kailas-cloud/mushi/internal/repository/scorecache"
	chiTransport "github.com/kailas-cloud/mushi/internal/transport/chi"
	healthuc "github.com/kailas-cloud/mushi/internal/usecase/health"
	"github.com/kailas-cloud/mushi/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLoggerWithFile(env, logpkg.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mushi API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("model", cfg.Model.Path),
		zap.Bool("artifacts_remote", cfg.Artifacts.Enabled()),
	)

	ctx := context.Background()

	// Register inference metrics explicitly (no init())
	metrics.RegisterInferenceMetrics()

	model, err := bootstrap.LoadModel(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load model", zap.Error(err))
	}
	defer model.Close()

	if cfg.Prediction.CacheSize > 0 {
		cache, err := scorecache.New(cfg.Prediction.CacheSize, metrics.ScoreCacheTotal)
		if err != nil {
			logger.Fatal("Failed to create score cache", zap.Error(err))
		}
		model.Predict.WithCache(cache)
		logger.Info("Score cache enabled", zap.Int("size", cfg.Prediction.CacheSize))
	}

	// Pass nil interface (not typed nil pointer!) when the journal is disabled.
	var journalPinger healthuc.JournalPinger
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Fatal("Failed to open prediction journal", zap.Error(err))
		}
		defer func() { _ = j.Close() }()
		model.Predict.WithJournal(j)
		journalPinger = j
		logger.Info("Prediction journal enabled", zap.String("path", cfg.Journal.Path))
	}

	healthSvc := healthuc.New(model.Classifier, journalPinger)

	server := chiTransport.NewServer(model.Predict, healthSvc, chiTransport.Options{
		DefaultTopK:    cfg.Prediction.TopK,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	}, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r,
		chiTransport.BearerAuth(cfg.Auth.APIKeys),
		chiTransport.RateLimitMiddleware(float64(cfg.HTTP.PredictRPS), cfg.HTTP.PredictBurst),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
