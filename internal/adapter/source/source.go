// Package source builds the configured raster source for the batch binaries.
package source

import (
	"log/slog"

	"github.com/couchcryptid/drought-index-etl/internal/adapter/archive"
	"github.com/couchcryptid/drought-index-etl/internal/adapter/fixture"
	"github.com/couchcryptid/drought-index-etl/internal/config"
	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
)

// New returns the archive client or the fixture reader selected by
// SOURCE_KIND, wrapped in an LRU cache.
func New(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.RasterSource, error) {
	var inner domain.RasterSource
	switch cfg.SourceKind {
	case config.SourceArchive:
		inner = archive.NewClient(cfg.SourceURL, cfg.SourceToken, cfg.SourceTimeout, cfg.SourceRetries, metrics, logger)
		logger.Info("archive source enabled", "url", cfg.SourceURL, "timeout", cfg.SourceTimeout, "retries", cfg.SourceRetries)
	default:
		src, err := fixture.Open(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		inner = src
		logger.Info("fixture source enabled", "path", cfg.FixturePath, "bands", src.Bands())
	}
	return archive.NewCachedSource(inner, cfg.SourceCacheSize, metrics), nil
}
