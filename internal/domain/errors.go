package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingData reports that a raster required for a key is absent.
	// It is always recoverable by skipping the affected key.
	ErrMissingData = errors.New("missing data")

	// ErrIncompleteWindow reports a run window with fewer than N flag rasters.
	ErrIncompleteWindow = fmt.Errorf("incomplete run window: %w", ErrMissingData)

	// ErrShapeMismatch reports arithmetic between rasters on different grids.
	ErrShapeMismatch = errors.New("raster shape mismatch")

	// ErrDuplicateKey reports a second write to a write-once store key.
	ErrDuplicateKey = errors.New("raster store key already written")

	// ErrWindowTooLong reports a trailing window longer than one year, which
	// the calendar-month wraparound cannot express.
	ErrWindowTooLong = errors.New("trailing window exceeds 12 months")

	// ErrInvalidWindow reports a trailing window shorter than one month.
	ErrInvalidWindow = errors.New("trailing window must be at least 1 month")

	// ErrInvalidPeriod reports an end month before the start month.
	ErrInvalidPeriod = errors.New("invalid period")
)

// ValidateWindow checks the trailing window length once at startup.
func ValidateWindow(n int) error {
	switch {
	case n < 1:
		return ErrInvalidWindow
	case n > 12:
		return ErrWindowTooLong
	}
	return nil
}
