package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
)

// Exporter writes one raster to a destination.
type Exporter interface {
	Name() string
	Export(ctx context.Context, req domain.ExportRequest) error
}

// MultiExporter fans every request out to each exporter. Export failures are
// logged and counted but never abort a run.
type MultiExporter struct {
	exporters []Exporter
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewMultiExporter wraps the given exporters. Nil entries are ignored.
func NewMultiExporter(logger *slog.Logger, metrics *observability.Metrics, exporters ...Exporter) *MultiExporter {
	m := &MultiExporter{logger: logger, metrics: metrics}
	for _, e := range exporters {
		if e != nil {
			m.exporters = append(m.exporters, e)
		}
	}
	return m
}

// Name implements Exporter.
func (m *MultiExporter) Name() string { return "multi" }

// Len returns the number of wrapped exporters.
func (m *MultiExporter) Len() int { return len(m.exporters) }

// Export implements Exporter. It always returns nil.
func (m *MultiExporter) Export(ctx context.Context, req domain.ExportRequest) error {
	for _, e := range m.exporters {
		if err := e.Export(ctx, req); err != nil {
			m.logger.Error("export failed",
				"exporter", e.Name(),
				"description", req.Description,
				"error", err,
			)
			m.metrics.Exports.WithLabelValues(e.Name(), "error").Inc()
			continue
		}
		m.metrics.Exports.WithLabelValues(e.Name(), "success").Inc()
	}
	return nil
}
