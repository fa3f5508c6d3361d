package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrPixelBudget reports an export whose raster exceeds its pixel budget.
var ErrPixelBudget = errors.New("raster exceeds max pixel budget")

// ExportRequest carries one raster to an exporter. Legend is set for
// classified rasters that should also be rendered with a palette.
type ExportRequest struct {
	RunID       string
	Variable    string
	Key         MonthKey
	Raster      *Raster
	Description string
	Scale       float64
	Region      Polygon
	Folder      string
	MaxPixels   float64
	Legend      *Legend
	ProcessedAt time.Time
}

// Validate checks the request before an exporter writes it.
func (r ExportRequest) Validate() error {
	if r.Raster == nil {
		return fmt.Errorf("export %s: %w", r.Description, ErrMissingData)
	}
	if r.Description == "" {
		return errors.New("export description is required")
	}
	if r.MaxPixels > 0 && float64(r.Raster.Grid.Len()) > r.MaxPixels {
		return fmt.Errorf("export %s: %d pixels: %w", r.Description, r.Raster.Grid.Len(), ErrPixelBudget)
	}
	return nil
}
