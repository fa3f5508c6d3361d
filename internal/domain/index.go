package domain

import (
	"fmt"
	"math"
	"time"
)

// TransformRunLength maps a run length in [0, n] onto [1, n+1] so that a
// longer adverse run gives a smaller value.
func TransformRunLength(runLength float64, n int) float64 {
	return -1*runLength + float64(n+1)
}

// TransformRunLengths applies TransformRunLength to every run-length raster.
func TransformRunLengths(v Variable, runLengths *MonthlyStore, n int) (*MonthlyStore, error) {
	out := NewMonthlyStore(v.Index + "_transformed_run_length")
	for _, k := range SortedKeys(runLengths) {
		r, _ := runLengths.Get(k)
		t := r.Map(func(x float64) float64 { return TransformRunLength(x, n) })
		if err := out.Put(k, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HistoricalRunLengthMeans averages the transformed run lengths per calendar
// month across every year with data.
func HistoricalRunLengthMeans(v Variable, transformed *MonthlyStore) (*ClimatologyStore, error) {
	return CalendarMeans(v.Index+"_historical_transformed_run_length", transformed)
}

// IndexInputs are the four operands of the drought index for one month.
type IndexInputs struct {
	RunningAverage      *Raster
	RunningLengthMean   *Raster
	TransformedRunLen   *Raster
	HistoricalRunLenAvg *Raster
}

// GatherIndexInputs looks up the operands for key. A missing operand yields
// ErrMissingData naming it.
func GatherIndexInputs(key MonthKey, running *MonthlyStore, rlMeans *ClimatologyStore,
	transformed *MonthlyStore, historical *ClimatologyStore,
) (IndexInputs, error) {
	var in IndexInputs
	var ok bool
	if in.RunningAverage, ok = running.Get(key); !ok {
		return in, fmt.Errorf("running average %s: %w", key, ErrMissingData)
	}
	if in.RunningLengthMean, ok = rlMeans.Get(key.Month); !ok {
		return in, fmt.Errorf("running length mean %s: %w", key.Month, ErrMissingData)
	}
	if in.TransformedRunLen, ok = transformed.Get(key); !ok {
		return in, fmt.Errorf("transformed run length %s: %w", key, ErrMissingData)
	}
	if in.HistoricalRunLenAvg, ok = historical.Get(key.Month); !ok {
		return in, fmt.Errorf("historical run length mean %s: %w", key.Month, ErrMissingData)
	}
	return in, nil
}

// ComposeIndex computes
//
//	(running_average / running_length_mean) * sqrt(transformed / historical_mean)
func ComposeIndex(in IndexInputs) (*Raster, error) {
	ratio, err := Div(in.RunningAverage, in.RunningLengthMean)
	if err != nil {
		return nil, fmt.Errorf("average ratio: %w", err)
	}
	runRatio, err := Div(in.TransformedRunLen, in.HistoricalRunLenAvg)
	if err != nil {
		return nil, fmt.Errorf("run length ratio: %w", err)
	}
	return Mul(ratio, runRatio.Map(math.Sqrt))
}

// Severity is an ordinal drought class, 1 (extreme) through 5 (normal).
type Severity int

const (
	SeverityExtreme Severity = iota + 1
	SeveritySevere
	SeverityModerate
	SeverityMild
	SeverityNormal
)

// severityBands are inclusive upper bounds; anything above the last is normal.
var severityBands = []struct {
	upper    float64
	severity Severity
}{
	{0.4, SeverityExtreme},
	{0.6, SeveritySevere},
	{0.8, SeverityModerate},
	{1.0, SeverityMild},
}

// ClassifyIndex maps an index value to its severity class.
func ClassifyIndex(index float64) Severity {
	for _, b := range severityBands {
		if index <= b.upper {
			return b.severity
		}
	}
	return SeverityNormal
}

func (s Severity) String() string {
	if s < SeverityExtreme || s > SeverityNormal {
		return "Unknown"
	}
	return SeverityLegend.Names[s-1]
}

// ClassifyRaster maps every unmasked index pixel to its severity class.
func ClassifyRaster(index *Raster) *Raster {
	return index.Map(func(v float64) float64 { return float64(ClassifyIndex(v)) })
}

// Legend pairs an ordered palette with class names; entry i describes class
// value i+1.
type Legend struct {
	Title   string   `json:"title" msgpack:"title"`
	Palette []string `json:"palette" msgpack:"palette"`
	Names   []string `json:"names" msgpack:"names"`
}

// SeverityLegend describes the five drought severity classes.
var SeverityLegend = Legend{
	Title:   "Legend",
	Palette: []string{"#930905", "#d03a27", "#e6987b", "#ffffbe", "#d2fbd2"},
	Names:   []string{"Extreme", "Severe", "Moderate", "Mild", "Normal"},
}

// IndexResult is the composed index for one variable and month.
type IndexResult struct {
	Variable   Variable
	Key        MonthKey
	Index      *Raster
	Classes    *Raster
	ComputedAt time.Time
}

// NewIndexResult classifies index and stamps the computation time.
func NewIndexResult(v Variable, key MonthKey, index *Raster) IndexResult {
	return IndexResult{
		Variable:   v,
		Key:        key,
		Index:      index,
		Classes:    ClassifyRaster(index),
		ComputedAt: clock.Now(),
	}
}

// RawDescription names the raw index export, e.g. "Raw_PDI_november_2024".
func (r IndexResult) RawDescription() string {
	return fmt.Sprintf("Raw_%s_%s_%d", r.Variable.Index, monthName(r.Key.Month), r.Key.Year)
}

// ClassifiedDescription names the classified export.
func (r IndexResult) ClassifiedDescription() string {
	return fmt.Sprintf("Reclassified_%s_%s_%d", r.Variable.Index, monthName(r.Key.Month), r.Key.Year)
}
