// Command genmock generates a deterministic synthetic raster archive for
// offline runs and tests: daily CHIRPS-like precipitation, 8-day MODIS-like
// land surface temperature (digital numbers on a grid twice as fine) and
// 16-day NDVI composites.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/archive.json \
//	  -start 2001-01 -end 2024-11 \
//	  -drought-year 2022
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/adapter/fixture"
	"github.com/couchcryptid/drought-index-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON archive fixture")
	start := flag.String("start", "2001-01", "first month (YYYY-MM)")
	end := flag.String("end", "2024-11", "last month (YYYY-MM)")
	seed := flag.Uint64("seed", 1, "random seed")
	droughtYear := flag.Int("drought-year", 0, "year with suppressed rain and raised temperature (0 for none)")
	cloud := flag.Float64("cloud-fraction", 0.1, "share of temperature pixels masked per composite")
	west := flag.Float64("west", 29.5, "grid west edge (degrees)")
	north := flag.Float64("north", 4.3, "grid north edge (degrees)")
	cell := flag.Float64("cell-size", 0.25, "grid cell size (degrees)")
	width := flag.Int("width", 22, "grid width (pixels)")
	height := flag.Int("height", 23, "grid height (pixels)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	period, err := parsePeriod(*start, *end)
	if err != nil {
		return err
	}

	grid := domain.Grid{West: *west, North: *north, CellSize: *cell, Width: *width, Height: *height}
	if grid.Len() <= 0 || grid.CellSize <= 0 {
		return fmt.Errorf("invalid grid %+v", grid)
	}

	archive := fixture.Generate(fixture.GenerateOptions{
		Period:        period,
		Grid:          grid,
		Seed:          *seed,
		DroughtYear:   *droughtYear,
		CloudFraction: *cloud,
	})

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := fixture.WriteArchive(*out, archive); err != nil {
		return err
	}

	counts := map[string]int{}
	for _, rec := range archive.Records {
		counts[rec.Band]++
	}
	log.Printf("wrote %s: %s to %s, %dx%d grid", *out, period.Start, period.End, grid.Width, grid.Height)
	for _, band := range []string{domain.BandPrecipitation, domain.BandTemperature, domain.BandNDVI} {
		log.Printf("  %s: %d observations", band, counts[band])
	}
	return nil
}

func parsePeriod(start, end string) (domain.Period, error) {
	s, err := parseMonth(start)
	if err != nil {
		return domain.Period{}, fmt.Errorf("invalid -start: %w", err)
	}
	e, err := parseMonth(end)
	if err != nil {
		return domain.Period{}, fmt.Errorf("invalid -end: %w", err)
	}
	p := domain.Period{Start: s, End: e}
	return p, p.Validate()
}

func parseMonth(s string) (domain.MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return domain.MonthKey{}, err
	}
	return domain.MonthKeyOf(t), nil
}
