// Command monthly-export aggregates monthly rainfall, rainfall classes and
// NDVI (optionally land surface temperature) over the configured period,
// exports every raster and stores per-region means in SQLite.
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
	"github.com/couchcryptid/drought-index-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/drought-index-etl/internal/config"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
	"github.com/couchcryptid/drought-index-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("monthly export failed", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := source.New(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("open raster source: %w", err)
	}

	// Zonal statistics are stored only when a database path is configured.
	var stats pipeline.StatsWriter
	if cfg.StatsDBPath != "" {
		store, err := sqlite.Open(ctx, cfg.StatsDBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("stats store close error", "error", err)
			}
		}()
		stats = store
		logger.Info("zonal statistics enabled", "db", cfg.StatsDBPath, "regions", len(regions.Regions))
	}

	var kafkaWriter *kafkaadapter.Writer
	var exporters []pipeline.Exporter
	if cfg.ExportDir != "" {
		exporters = append(exporters, folder.NewExporter(cfg.ExportDir, logger))
	}
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		exporters = append(exporters, kafkaWriter)
	}

	m := pipeline.NewMonthlyExport(src, pipeline.NewMultiExporter(logger, metrics, exporters...), stats, logger, metrics,
		pipeline.MonthlyOptions{
			Period:             cfg.Period,
			Workers:            cfg.Workers,
			Grid:               cfg.Grid,
			AOI:                regions.AOI,
			Regions:            regions.Regions,
			ExportScale:        cfg.ExportScale,
			MaxPixels:          cfg.ExportMaxPixels,
			IncludeTemperature: cfg.MonthlyTemperature,
		})

	srv := httpadapter.NewServer(cfg.HTTPAddr, m, m, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	report, runErr := m.Run(ctx)
	logger.Info("monthly export report",
		"exported", report.Exported,
		"skipped", report.Skipped,
		"zonal_stats", report.ZonalStats,
	)

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
	return runErr
}
