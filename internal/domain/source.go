package domain

import (
	"context"
	"time"
)

// Query selects observations of one band over [Start, End) covering Bounds.
type Query struct {
	Band   string
	Start  time.Time
	End    time.Time
	Bounds Grid
}

// Observation is one time-stamped raster from a source.
type Observation struct {
	Time   time.Time
	Raster *Raster
}

// RasterSource supplies time-indexed rasters. A range with no coverage
// returns an empty series and a nil error.
type RasterSource interface {
	Series(ctx context.Context, q Query) ([]Observation, error)
}
