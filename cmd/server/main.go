package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KalilDev/cached-sized-image/internal/catalog"
	"github.com/KalilDev/cached-sized-image/internal/config"
	"github.com/KalilDev/cached-sized-image/internal/fetch"
	"github.com/KalilDev/cached-sized-image/internal/handlers"
	"github.com/KalilDev/cached-sized-image/internal/loader"
	"github.com/KalilDev/cached-sized-image/internal/memcache"
	"github.com/KalilDev/cached-sized-image/internal/resize"
	"github.com/KalilDev/cached-sized-image/internal/router"
	"github.com/KalilDev/cached-sized-image/internal/storage"
	"github.com/KalilDev/cached-sized-image/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	var mirror store.Mirror
	if cfg.MirrorEnabled {
		s3, err := storage.NewS3Mirror(cfg, logger)
		if err != nil {
			logger.Error("mirror unavailable", "error", err)
			os.Exit(1)
		}
		mirror = s3
	}

	imageStore, err := store.New(cfg.CacheDir, mirror, logger)
	if err != nil {
		logger.Error("cache directory unusable", "dir", cfg.CacheDir, "error", err)
		os.Exit(1)
	}
	catalogFile := catalog.NewFile(filepath.Join(cfg.CacheDir, "catalog.json"), logger)

	gateway := fetch.NewHTTPGateway(fetch.Options{
		MaxBytes: cfg.FetchMaxBytes,
		Rate:     cfg.FetchRate,
		Burst:    cfg.FetchBurst,
		Timeout:  time.Duration(cfg.FetchTimeoutMs) * time.Millisecond,
	}, logger)

	worker := resize.NewWorker(logger)
	defer worker.Close()

	hot := memcache.New(cfg.MemCacheMaxBytes)
	defer hot.Close()

	imageLoader := loader.New(catalogFile, imageStore, gateway, worker, hot, logger)

	engine := router.Setup(
		handlers.NewImageHandler(imageLoader, logger),
		handlers.NewStatsHandler(hot),
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "cache_dir", cfg.CacheDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
