// Command drought computes the Precipitation and Temperature Drought Indices
// over the configured period and exports the raw and classified rasters.
// Health, readiness, run status and metrics are served while the batch runs;
// the process exits when the run completes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/drought-index-etl/internal/adapter/folder"
	"github.com/couchcryptid/drought-index-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/drought-index-etl/internal/adapter/kafka"
	"github.com/couchcryptid/drought-index-etl/internal/adapter/source"
	"github.com/couchcryptid/drought-index-etl/internal/config"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
	"github.com/couchcryptid/drought-index-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("drought run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	regions, err := config.LoadRegions(cfg.RegionsFile, cfg.Grid)
	if err != nil {
		return err
	}

	src, err := source.New(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("open raster source: %w", err)
	}

	var kafkaWriter *kafkaadapter.Writer
	var exporters []pipeline.Exporter
	if cfg.ExportDir != "" {
		exporters = append(exporters, folder.NewExporter(cfg.ExportDir, logger))
		logger.Info("folder export enabled", "dir", cfg.ExportDir)
	}
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		exporters = append(exporters, kafkaWriter)
		logger.Info("kafka export enabled", "topic", cfg.KafkaSinkTopic)
	}
	exporter := pipeline.NewMultiExporter(logger, metrics, exporters...)
	if exporter.Len() == 0 {
		logger.Warn("no exporter configured, results are only logged")
	}

	p := pipeline.New(src, exporter, logger, metrics, pipeline.Options{
		Period:         cfg.Period,
		WindowMonths:   cfg.WindowMonths,
		Workers:        cfg.Workers,
		IndexAllMonths: cfg.IndexAllMonths,
		Grid:           cfg.Grid,
		AOI:            regions.AOI,
		ExportFolder:   cfg.ExportFolder,
		ExportScale:    cfg.ExportScale,
		MaxPixels:      cfg.ExportMaxPixels,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	reports, runErr := p.Run(ctx, cfg.Variables())
	for _, r := range reports {
		logger.Info("index computed",
			"variable", r.Variable.Index,
			"results", len(r.Results),
			"skipped", r.Skipped,
		)
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
