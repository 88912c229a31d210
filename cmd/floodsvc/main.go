package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-detection-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/flood-detection-service/internal/adapter/kafka"
	"github.com/couchcryptid/flood-detection-service/internal/adapter/memory"
	"github.com/couchcryptid/flood-detection-service/internal/adapter/remote"
	"github.com/couchcryptid/flood-detection-service/internal/config"
	"github.com/couchcryptid/flood-detection-service/internal/observability"
	"github.com/couchcryptid/flood-detection-service/internal/pipeline"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	backend, err := newBackend(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to initialise raster backend", "error", err)
		os.Exit(1)
	}

	settings := pipeline.DefaultSettings()
	settings.Mode = cfg.AnalysisMode
	settings.OpticalStart = cfg.OpticalStart
	settings.OpticalEnd = cfg.OpticalEnd

	var opts []pipeline.Option
	if cfg.ReferenceFloodsDir != "" {
		catalog, err := pipeline.LoadCatalogDir(cfg.ReferenceFloodsDir)
		if err != nil {
			logger.Error("failed to load reference floods", "error", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithReferenceCatalog(catalog))
		logger.Info("reference floods loaded", "dates", catalog.Dates())
	}

	// Result publication is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka publication enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaResultTopic)
	} else {
		logger.Info("kafka publication disabled")
	}

	p, err := pipeline.New(backend, settings, logger, metrics, opts...)
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, cfg.AnalysisTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func newBackend(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (raster.Backend, error) {
	if cfg.RasterBackend == config.BackendMemory {
		b, err := memory.LoadManifest(cfg.RasterManifest)
		if err != nil {
			return nil, err
		}
		logger.Info("memory raster backend", "manifest", cfg.RasterManifest)
		return b, nil
	}

	client := remote.NewClient(cfg.RasterAPIURL, cfg.RasterAPIToken, cfg.RasterTimeout, metrics, logger)
	logger.Info("remote raster backend", "url", cfg.RasterAPIURL, "cache_size", cfg.RasterCacheSize, "timeout", cfg.RasterTimeout)
	return remote.NewCachedBackend(client, cfg.RasterCacheSize, metrics), nil
}
