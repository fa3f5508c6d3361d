// Command validate performs end-to-end integrity checks of the drought index
// pipeline over an archive fixture. It runs every index twice and verifies
// that the runs are bit-identical, that run lengths and transformed run
// lengths stay inside their bounds, and that every severity class matches its
// index value.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fixture data/mock/archive.json \
//	  -start 2001-01 -end 2024-11 -window 6
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/adapter/fixture"
	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
	"github.com/couchcryptid/drought-index-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// run is one pipeline execution of a variable.
type run struct {
	report pipeline.Report
	stores *pipeline.Stores
}

func main() {
	fixturePath := flag.String("fixture", "", "path to the JSON archive fixture")
	start := flag.String("start", "2001-01", "first month (YYYY-MM)")
	end := flag.String("end", "2024-11", "last month (YYYY-MM)")
	window := flag.Int("window", 6, "trailing window in months")
	workers := flag.Int("workers", 4, "concurrent months per stage")
	flag.Parse()

	if *fixturePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := runValidation(*fixturePath, *start, *end, *window, *workers); code != 0 {
		os.Exit(code)
	}
}

func runValidation(fixturePath, start, end string, window, workers int) int {
	// Fixed clock so both runs stamp identical computation times.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Drought Index Integrity Validation ===")
	fmt.Println()

	period, err := parsePeriod(start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if err := domain.ValidateWindow(window); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -window %d: %v\n", window, err)
		return 1
	}

	archive, err := fixture.ReadArchive(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}
	grid, ok := analysisGrid(archive)
	if !ok {
		fmt.Fprintln(os.Stderr, "FATAL: fixture has no precipitation records")
		return 1
	}

	variables := []domain.Variable{domain.Precipitation, domain.Temperature}
	first, err := runAll(archive, grid, period, window, workers, variables)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: first run: %v\n", err)
		return 1
	}
	second, err := runAll(archive, grid, period, window, workers, variables)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: second run: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateIdempotence(first, second),
		validateRunLengths(first, window),
		validateClasses(first),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, v := range variables {
		r := first[v.Index]
		fmt.Printf("%s: %d indices, %d run-length months, skipped %v\n",
			v.Index, len(r.report.Results), r.stores.RunLengths.Len(), r.report.Skipped)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	return 1
}

func runAll(archive *fixture.Archive, grid domain.Grid, period domain.Period, window, workers int, variables []domain.Variable) (map[string]run, error) {
	source, err := fixture.NewSource(archive)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(source, nil, logger, observability.NewMetricsForTesting(), pipeline.Options{
		Period:         period,
		WindowMonths:   window,
		Workers:        workers,
		IndexAllMonths: true,
		Grid:           grid,
		AOI:            domain.BoundsPolygon(grid),
	})

	out := make(map[string]run, len(variables))
	for _, v := range variables {
		report, stores, err := p.RunVariable(context.Background(), v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.Index, err)
		}
		out[v.Index] = run{report: report, stores: stores}
	}
	return out, nil
}

// analysisGrid is the grid of the first precipitation record.
func analysisGrid(a *fixture.Archive) (domain.Grid, bool) {
	for _, rec := range a.Records {
		if rec.Band == domain.BandPrecipitation {
			return rec.Grid, true
		}
	}
	return domain.Grid{}, false
}

func validateIdempotence(first, second map[string]run) *phase {
	p := &phase{name: "Phase 1: Idempotence (two runs)"}
	for name, a := range first {
		b := second[name]
		compareStores(p, name+" run_length", a.stores.RunLengths, b.stores.RunLengths)
		compareStores(p, name+" transformed", a.stores.Transformed, b.stores.Transformed)
		compareStores(p, name+" running_average", a.stores.RunningAverages, b.stores.RunningAverages)

		if len(a.report.Results) != len(b.report.Results) {
			p.errorf("%s: %d vs %d results", name, len(a.report.Results), len(b.report.Results))
			continue
		}
		for i := range a.report.Results {
			ra, rb := a.report.Results[i], b.report.Results[i]
			if ra.Key != rb.Key {
				p.errorf("%s result %d: key %s vs %s", name, i, ra.Key, rb.Key)
				continue
			}
			if j, ok := firstDifference(ra.Index, rb.Index); !ok {
				p.errorf("%s %s: index differs at pixel %d", name, ra.Key, j)
			}
		}
	}
	return p
}

func compareStores(p *phase, name string, a, b *domain.MonthlyStore) {
	if a.Len() != b.Len() {
		p.errorf("%s: %d vs %d rasters", name, a.Len(), b.Len())
		return
	}
	for _, k := range domain.SortedKeys(a) {
		ra, _ := a.Get(k)
		rb, ok := b.Get(k)
		if !ok {
			p.errorf("%s %s: missing from second run", name, k)
			continue
		}
		if j, ok := firstDifference(ra, rb); !ok {
			p.errorf("%s %s: differs at pixel %d", name, k, j)
		}
	}
}

// firstDifference compares two rasters bit for bit, treating every NaN as
// equal.
func firstDifference(a, b *domain.Raster) (int, bool) {
	if len(a.Data) != len(b.Data) {
		return 0, false
	}
	for i := range a.Data {
		x, y := a.Data[i], b.Data[i]
		if math.IsNaN(x) && math.IsNaN(y) {
			continue
		}
		if math.Float64bits(x) != math.Float64bits(y) {
			return i, false
		}
	}
	return 0, true
}

func validateRunLengths(runs map[string]run, window int) *phase {
	p := &phase{name: "Phase 2: Run-length bounds"}
	for name, r := range runs {
		checkRange(p, name+" run_length", r.stores.RunLengths, 0, float64(window))
		checkRange(p, name+" transformed", r.stores.Transformed, 1, float64(window+1))
	}
	return p
}

func checkRange(p *phase, name string, s *domain.MonthlyStore, lo, hi float64) {
	for _, k := range domain.SortedKeys(s) {
		r, _ := s.Get(k)
		for i, v := range r.Data {
			if math.IsNaN(v) {
				continue
			}
			if v < lo || v > hi || v != math.Trunc(v) {
				p.errorf("%s %s pixel %d: %v outside [%v, %v]", name, k, i, v, lo, hi)
			}
		}
	}
}

func validateClasses(runs map[string]run) *phase {
	p := &phase{name: "Phase 3: Severity classes"}
	for name, r := range runs {
		for _, res := range r.report.Results {
			for i, v := range res.Index.Data {
				c := res.Classes.Data[i]
				switch {
				case math.IsNaN(v) != math.IsNaN(c):
					p.errorf("%s %s pixel %d: index %v but class %v", name, res.Key, i, v, c)
				case math.IsNaN(v):
				case c < float64(domain.SeverityExtreme) || c > float64(domain.SeverityNormal):
					p.errorf("%s %s pixel %d: class %v out of range", name, res.Key, i, c)
				case c != float64(domain.ClassifyIndex(v)):
					p.errorf("%s %s pixel %d: index %v classified as %v", name, res.Key, i, v, c)
				}
			}
		}
	}
	return p
}

func parsePeriod(start, end string) (domain.Period, error) {
	s, err := time.Parse("2006-01", start)
	if err != nil {
		return domain.Period{}, fmt.Errorf("invalid -start: %w", err)
	}
	e, err := time.Parse("2006-01", end)
	if err != nil {
		return domain.Period{}, fmt.Errorf("invalid -end: %w", err)
	}
	p := domain.Period{Start: domain.MonthKeyOf(s), End: domain.MonthKeyOf(e)}
	return p, p.Validate()
}
