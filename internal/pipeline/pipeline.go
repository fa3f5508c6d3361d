package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures a drought index run.
type Options struct {
	Period         domain.Period
	WindowMonths   int
	Workers        int
	IndexAllMonths bool
	Grid           domain.Grid
	AOI            domain.Polygon
	ExportFolder   string
	ExportScale    float64
	MaxPixels      float64
}

// Report summarizes one variable's run.
type Report struct {
	Variable domain.Variable
	Results  []domain.IndexResult
	Skipped  map[string]int
}

// Stores exposes every intermediate store of a variable's run, in stage order.
type Stores struct {
	Raw                *domain.MonthlyStore
	Normalized         *domain.MonthlyStore
	Climatology        *domain.ClimatologyStore
	RunningAverages    *domain.MonthlyStore
	RunningLengthMeans *domain.ClimatologyStore
	Flags              *domain.MonthlyStore
	RunLengths         *domain.MonthlyStore
	Transformed        *domain.MonthlyStore
	HistoricalMeans    *domain.ClimatologyStore
}

// DroughtPipeline computes PDI and TDI rasters over a historical period.
// Every stage is fully materialized before the next one starts.
type DroughtPipeline struct {
	source   domain.RasterSource
	exporter Exporter
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
	ready    atomic.Bool
	status   statusTracker
}

// New creates a DroughtPipeline. A nil exporter disables exports.
func New(source domain.RasterSource, exporter Exporter, logger *slog.Logger, metrics *observability.Metrics, opts Options) *DroughtPipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &DroughtPipeline{
		source:   source,
		exporter: exporter,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *DroughtPipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("drought pipeline has not completed a run yet")
	}
	return nil
}

// Run computes every variable in turn and exports the results. MissingData
// never aborts a run; configuration and source errors do.
func (p *DroughtPipeline) Run(ctx context.Context, variables []domain.Variable) (reports []Report, err error) {
	if err := domain.ValidateWindow(p.opts.WindowMonths); err != nil {
		return nil, err
	}
	if err := p.opts.Period.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	p.logger.Info("drought pipeline started",
		"run_id", runID,
		"start", p.opts.Period.Start.String(),
		"end", p.opts.Period.End.String(),
		"window_months", p.opts.WindowMonths,
		"workers", p.opts.Workers,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.status.start(runID)
	defer func() { p.status.finish(err) }()

	reports = make([]Report, 0, len(variables))
	for _, v := range variables {
		report, _, err := p.RunVariable(ctx, v)
		if err != nil {
			return reports, fmt.Errorf("%s: %w", v.Index, err)
		}
		p.export(ctx, runID, report.Results)
		p.status.record(map[string]int{v.Index: len(report.Results)}, prefixed(v.Index, report.Skipped))
		reports = append(reports, report)
	}

	p.ready.Store(true)
	p.metrics.LastRunSuccess.SetToCurrentTime()
	p.logger.Info("drought pipeline finished", "run_id", runID)
	return reports, nil
}

// Status reports the latest run.
func (p *DroughtPipeline) Status() Status {
	return p.status.snapshot()
}

// RunVariable executes stages 4.1 through 4.6 for one variable and returns the
// composed indices along with every intermediate store.
func (p *DroughtPipeline) RunVariable(ctx context.Context, v domain.Variable) (Report, *Stores, error) {
	report := Report{Variable: v, Skipped: map[string]int{}}
	s := &Stores{}
	n := p.opts.WindowMonths
	var err error

	err = p.stage(v, "aggregate", func() error {
		s.Raw, err = p.aggregate(ctx, v, &report)
		return err
	})
	if err != nil {
		return report, s, err
	}

	err = p.stage(v, "baseline", func() error {
		if s.Normalized, err = domain.Normalize(v, s.Raw); err != nil {
			return err
		}
		s.Climatology, err = domain.Climatology(v, s.Normalized)
		return err
	})
	if err != nil {
		return report, s, err
	}

	err = p.stage(v, "running_average", func() error {
		if s.RunningAverages, err = domain.RunningAverages(v, s.Normalized, p.opts.Period, n); err != nil {
			return err
		}
		s.RunningLengthMeans, err = domain.RunningLengthMeans(v, s.RunningAverages)
		return err
	})
	if err != nil {
		return report, s, err
	}

	err = p.stage(v, "anomaly", func() error {
		var skipped []domain.MonthKey
		s.Flags, skipped, err = domain.AnomalyFlags(v, s.Normalized, s.Climatology)
		for _, k := range skipped {
			p.skip(&report, v, "anomaly", k, domain.ErrMissingData)
		}
		return err
	})
	if err != nil {
		return report, s, err
	}

	err = p.stage(v, "run_length", func() error {
		s.RunLengths, err = p.runLengths(ctx, v, s.Flags, &report)
		if err != nil {
			return err
		}
		s.Transformed, err = domain.TransformRunLengths(v, s.RunLengths, n)
		if err != nil {
			return err
		}
		s.HistoricalMeans, err = domain.HistoricalRunLengthMeans(v, s.Transformed)
		return err
	})
	if err != nil {
		return report, s, err
	}

	err = p.stage(v, "compose", func() error {
		report.Results, err = p.compose(ctx, v, s, &report)
		return err
	})
	return report, s, err
}

// Targets lists the months whose index is composed.
func (p *DroughtPipeline) Targets() []domain.MonthKey {
	if !p.opts.IndexAllMonths {
		return []domain.MonthKey{p.opts.Period.End}
	}
	first := p.opts.Period.FirstCompleteWindow(p.opts.WindowMonths)
	return domain.Period{Start: first, End: p.opts.Period.End}.Months()
}

func (p *DroughtPipeline) aggregate(ctx context.Context, v domain.Variable, report *Report) (*domain.MonthlyStore, error) {
	months := p.opts.Period.Months()
	rasters, missing, err := fetchMonths(ctx, p.source, v, p.opts.Grid, p.opts.AOI, months, p.opts.Workers)
	if err != nil {
		return nil, err
	}

	raw := domain.NewMonthlyStore(v.Index + "_raw")
	for i, k := range months {
		if rasters[i] == nil {
			p.skip(report, v, "aggregate", k, missing[i])
			continue
		}
		if err := raw.Put(k, rasters[i]); err != nil {
			return nil, err
		}
		p.metrics.MonthsFetched.WithLabelValues(v.Index).Inc()
	}
	return raw, nil
}

func (p *DroughtPipeline) runLengths(ctx context.Context, v domain.Variable, flags *domain.MonthlyStore, report *Report) (*domain.MonthlyStore, error) {
	n := p.opts.WindowMonths
	engine := domain.NewRunLengthEngine(n, v.NoRun)
	targets := domain.Period{Start: p.opts.Period.FirstCompleteWindow(n), End: p.opts.Period.End}.Months()

	rasters, missing, err := forEachMonth(ctx, p.opts.Workers, targets, func(_ context.Context, k domain.MonthKey) (*domain.Raster, error) {
		seq, err := domain.RunSequence(flags, k, n)
		if err != nil {
			return nil, err
		}
		return engine.Compute(seq)
	})
	if err != nil {
		return nil, err
	}

	out := domain.NewMonthlyStore(v.Index + "_run_length")
	for i, k := range targets {
		if rasters[i] == nil {
			p.skip(report, v, "run_length", k, missing[i])
			continue
		}
		if err := out.Put(k, rasters[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *DroughtPipeline) compose(ctx context.Context, v domain.Variable, s *Stores, report *Report) ([]domain.IndexResult, error) {
	targets := p.Targets()

	rasters, missing, err := forEachMonth(ctx, p.opts.Workers, targets, func(_ context.Context, k domain.MonthKey) (*domain.Raster, error) {
		in, err := domain.GatherIndexInputs(k, s.RunningAverages, s.RunningLengthMeans, s.Transformed, s.HistoricalMeans)
		if err != nil {
			return nil, err
		}
		return domain.ComposeIndex(in)
	})
	if err != nil {
		return nil, err
	}

	results := make([]domain.IndexResult, 0, len(targets))
	for i, k := range targets {
		if rasters[i] == nil {
			p.skip(report, v, "compose", k, missing[i])
			continue
		}
		results = append(results, domain.NewIndexResult(v, k, rasters[i]))
		p.metrics.IndicesComputed.WithLabelValues(v.Index).Inc()
	}
	return results, nil
}

func (p *DroughtPipeline) export(ctx context.Context, runID string, results []domain.IndexResult) {
	if p.exporter == nil {
		return
	}
	for _, r := range results {
		legend := domain.SeverityLegend
		for _, req := range []domain.ExportRequest{
			p.exportRequest(runID, r, r.Index, r.RawDescription(), nil),
			p.exportRequest(runID, r, r.Classes, r.ClassifiedDescription(), &legend),
		} {
			if err := p.exporter.Export(ctx, req); err != nil {
				p.logger.Error("export failed", "description", req.Description, "error", err)
			}
		}
	}
}

func (p *DroughtPipeline) exportRequest(runID string, r domain.IndexResult, raster *domain.Raster, desc string, legend *domain.Legend) domain.ExportRequest {
	return domain.ExportRequest{
		RunID:       runID,
		Variable:    r.Variable.Index,
		Key:         r.Key,
		Raster:      raster.Clip(p.opts.AOI),
		Description: desc,
		Scale:       p.opts.ExportScale,
		Region:      p.opts.AOI,
		Folder:      p.opts.ExportFolder,
		MaxPixels:   p.opts.MaxPixels,
		Legend:      legend,
		ProcessedAt: r.ComputedAt,
	}
}

// stage times fn and records it under the stage label.
func (p *DroughtPipeline) stage(v domain.Variable, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(v.Index, name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	p.logger.Debug("stage complete", "variable", v.Index, "stage", name, "duration", time.Since(start))
	return nil
}

// skip records a month dropped for missing data. Gaps before the first
// complete window are expected and logged at debug.
func (p *DroughtPipeline) skip(report *Report, v domain.Variable, stage string, k domain.MonthKey, reason error) {
	report.Skipped[stage]++
	p.metrics.MonthsSkipped.WithLabelValues(v.Index, stage).Inc()

	level := slog.LevelWarn
	if k.Before(p.opts.Period.FirstCompleteWindow(p.opts.WindowMonths)) {
		level = slog.LevelDebug
	}
	attrs := []any{"variable", v.Index, "stage", stage, "year", k.Year, "month", int(k.Month)}
	if reason != nil {
		attrs = append(attrs, "reason", reason.Error())
	}
	p.logger.Log(context.Background(), level, "month skipped", attrs...)
}

func prefixed(prefix string, counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[prefix+"/"+k] = v
	}
	return out
}

// fetchMonths aggregates v for every month in months from source. Months with
// no observations come back nil with their MissingData reason.
func fetchMonths(ctx context.Context, source domain.RasterSource, v domain.Variable,
	grid domain.Grid, aoi domain.Polygon, months []domain.MonthKey, workers int,
) ([]*domain.Raster, []error, error) {
	agg := domain.NewMonthlyAggregator(v, grid, aoi)
	return forEachMonth(ctx, workers, months, func(ctx context.Context, k domain.MonthKey) (*domain.Raster, error) {
		series, err := source.Series(ctx, domain.Query{
			Band:   v.Band,
			Start:  k.Start(),
			End:    k.End(),
			Bounds: grid,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s: %w", v.Band, k, err)
		}
		r, ok, err := agg.Aggregate(series, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no %s observations in %s: %w", v.Band, k, domain.ErrMissingData)
		}
		return r, nil
	})
}

// forEachMonth runs fn for every key with at most workers goroutines and
// returns the results in key order. An error wrapping ErrMissingData is
// recorded for its key and leaves a nil raster; any other error cancels the
// remaining keys and is returned.
func forEachMonth(ctx context.Context, workers int, keys []domain.MonthKey,
	fn func(context.Context, domain.MonthKey) (*domain.Raster, error),
) ([]*domain.Raster, []error, error) {
	out := make([]*domain.Raster, len(keys))
	missing := make([]error, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, k := range keys {
		g.Go(func() error {
			r, err := fn(gctx, k)
			switch {
			case errors.Is(err, domain.ErrMissingData):
				missing[i] = err
				return nil
			case err != nil:
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, missing, nil
}
