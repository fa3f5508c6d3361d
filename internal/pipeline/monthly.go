package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
	"github.com/google/uuid"
)

// Export folders of the monthly products.
const (
	FolderPrecipitation           = "GEE_FAO_Precipitation"
	FolderPrecipitationClassified = "GEE_FAO_Precipitation_classified"
	FolderNDVI                    = "GEE_FAO_NDVI"
	FolderTemperature             = "GEE_FAO_Temp"
)

// StatsWriter persists zonal statistics.
type StatsWriter interface {
	WriteStats(ctx context.Context, stats []domain.ZonalStat) error
}

// MonthlyOptions configures a monthly export run.
type MonthlyOptions struct {
	Period             domain.Period
	Workers            int
	Grid               domain.Grid
	AOI                domain.Polygon
	Regions            []domain.Polygon
	ExportScale        float64
	MaxPixels          float64
	IncludeTemperature bool
}

// MonthlyReport counts what a monthly export run produced.
type MonthlyReport struct {
	Exported   map[string]int
	Skipped    map[string]int
	ZonalStats int
}

// product is one monthly raster family and its exports.
type product struct {
	variable domain.Variable
	outputs  []output
}

type output struct {
	prefix   string
	folder   string
	classify func(*domain.Raster) *domain.Raster
	zonal    bool
}

// MonthlyExport aggregates rainfall, NDVI and optionally temperature per
// month, exports each raster and records per-region means.
type MonthlyExport struct {
	source   domain.RasterSource
	exporter Exporter
	stats    StatsWriter
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     MonthlyOptions
	ready    atomic.Bool
	status   statusTracker
}

// NewMonthlyExport creates a MonthlyExport. A nil stats writer disables zonal
// statistics.
func NewMonthlyExport(source domain.RasterSource, exporter Exporter, stats StatsWriter,
	logger *slog.Logger, metrics *observability.Metrics, opts MonthlyOptions,
) *MonthlyExport {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &MonthlyExport{
		source:   source,
		exporter: exporter,
		stats:    stats,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Status reports the latest run.
func (m *MonthlyExport) Status() Status {
	return m.status.snapshot()
}

// CheckReadiness returns nil once a run has completed successfully.
func (m *MonthlyExport) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("monthly export has not completed a run yet")
	}
	return nil
}

func (m *MonthlyExport) products() []product {
	ps := []product{
		{
			variable: domain.Precipitation,
			outputs: []output{
				{prefix: "rainfall", folder: FolderPrecipitation, zonal: true},
				{prefix: "classified_rainfall", folder: FolderPrecipitationClassified, classify: domain.ClassifyRainfallRaster},
			},
		},
		{
			variable: domain.NDVI,
			outputs:  []output{{prefix: "ndvi", folder: FolderNDVI, zonal: true}},
		},
	}
	if m.opts.IncludeTemperature {
		ps = append(ps, product{
			variable: domain.Temperature,
			outputs:  []output{{prefix: "temperature", folder: FolderTemperature, zonal: true}},
		})
	}
	return ps
}

// Run exports every product for every month of the period. Months without
// observations are skipped; source errors abort the run.
func (m *MonthlyExport) Run(ctx context.Context) (report MonthlyReport, err error) {
	if err := m.opts.Period.Validate(); err != nil {
		return MonthlyReport{}, err
	}

	runID := uuid.NewString()
	report = MonthlyReport{Exported: map[string]int{}, Skipped: map[string]int{}}
	m.status.start(runID)
	defer func() {
		m.status.record(report.Exported, report.Skipped)
		m.status.finish(err)
	}()
	m.logger.Info("monthly export started",
		"run_id", runID,
		"start", m.opts.Period.Start.String(),
		"end", m.opts.Period.End.String(),
	)
	m.metrics.PipelineRunning.Set(1)
	defer m.metrics.PipelineRunning.Set(0)

	months := m.opts.Period.Months()
	for _, p := range m.products() {
		rasters, missing, err := fetchMonths(ctx, m.source, p.variable, m.opts.Grid, m.opts.AOI, months, m.opts.Workers)
		if err != nil {
			return report, fmt.Errorf("%s: %w", p.variable.Band, err)
		}

		for i, k := range months {
			if rasters[i] == nil {
				report.Skipped[p.variable.Band]++
				m.metrics.MonthsSkipped.WithLabelValues(p.variable.Index, "aggregate").Inc()
				m.logger.Warn("month skipped",
					"variable", p.variable.Band,
					"year", k.Year,
					"month", int(k.Month),
					"reason", missing[i].Error(),
				)
				continue
			}
			m.metrics.MonthsFetched.WithLabelValues(p.variable.Index).Inc()

			for _, out := range p.outputs {
				r := rasters[i]
				if out.classify != nil {
					r = out.classify(r)
				}
				if err := m.export(ctx, runID, p.variable, k, r, out); err != nil {
					m.logger.Error("export failed", "description", domain.MonthlyDescription(out.prefix, k), "error", err)
				} else {
					report.Exported[out.folder]++
				}
				if out.zonal {
					n, err := m.writeZonal(ctx, p.variable, k, r)
					if err != nil {
						return report, err
					}
					report.ZonalStats += n
				}
			}
		}
	}

	m.ready.Store(true)
	m.metrics.LastRunSuccess.SetToCurrentTime()
	m.logger.Info("monthly export finished",
		"run_id", runID,
		"zonal_stats", report.ZonalStats,
	)
	return report, nil
}

func (m *MonthlyExport) export(ctx context.Context, runID string, v domain.Variable, k domain.MonthKey, r *domain.Raster, out output) error {
	if m.exporter == nil {
		return nil
	}
	return m.exporter.Export(ctx, domain.ExportRequest{
		RunID:       runID,
		Variable:    v.Band,
		Key:         k,
		Raster:      r,
		Description: domain.MonthlyDescription(out.prefix, k),
		Scale:       m.opts.ExportScale,
		Region:      m.opts.AOI,
		Folder:      out.folder,
		MaxPixels:   m.opts.MaxPixels,
		ProcessedAt: domain.Now(),
	})
}

func (m *MonthlyExport) writeZonal(ctx context.Context, v domain.Variable, k domain.MonthKey, r *domain.Raster) (int, error) {
	if m.stats == nil || len(m.opts.Regions) == 0 {
		return 0, nil
	}
	stats := domain.ZonalMeans(r, m.opts.Regions, v.Band, k)
	if err := m.stats.WriteStats(ctx, stats); err != nil {
		return 0, fmt.Errorf("write zonal stats %s %s: %w", v.Band, k, err)
	}
	m.metrics.ZonalStats.Add(float64(len(stats)))
	return len(stats), nil
}
