package domain

import (
	"fmt"
	"math"
)

// Run is a maximal stretch of identical values in a sequence.
type Run struct {
	Start  int
	Length int
	Value  float64
}

// EncodeRuns splits seq into maximal runs of identical values. A run starts at
// index 0 and wherever a value differs from its predecessor; each run extends
// to the next start, the sequence length closing the final run.
func EncodeRuns(seq []float64) []Run {
	if len(seq) == 0 {
		return nil
	}
	var starts []int
	for i := range seq {
		if i == 0 || seq[i] != seq[i-1] {
			starts = append(starts, i)
		}
	}
	runs := make([]Run, len(starts))
	for i, s := range starts {
		end := len(seq)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		runs[i] = Run{Start: s, Length: end - s, Value: seq[s]}
	}
	return runs
}

// DecodeRuns expands runs back into the sequence they encode.
func DecodeRuns(runs []Run) []float64 {
	n := 0
	for _, r := range runs {
		n += r.Length
	}
	seq := make([]float64, 0, n)
	for _, r := range runs {
		for range r.Length {
			seq = append(seq, r.Value)
		}
	}
	return seq
}

// LongestRun returns the longest run carrying value. Ties go to the earliest
// run. ok is false when no run carries value.
func LongestRun(runs []Run, value float64) (Run, bool) {
	var best Run
	found := false
	for _, r := range runs {
		if r.Value != value {
			continue
		}
		if !found || r.Length > best.Length {
			best, found = r, true
		}
	}
	return best, found
}

// RunSequence collects the n flag rasters of the window ending at target, in
// chronological order. Any missing month yields ErrIncompleteWindow.
func RunSequence(flags *MonthlyStore, target MonthKey, n int) ([]*Raster, error) {
	window := target.Window(n)
	seq := make([]*Raster, 0, n)
	for _, k := range window {
		r, ok := flags.Get(k)
		if !ok {
			return nil, fmt.Errorf("run window ending %s: flag %s: %w", target, k, ErrIncompleteWindow)
		}
		seq = append(seq, r)
	}
	return seq, nil
}

// RunLengthEngine finds, per pixel, the longest below-normal run inside a
// trailing window of flag rasters.
type RunLengthEngine struct {
	Window int
	NoRun  NoRunPolicy
}

// NewRunLengthEngine creates an engine for n-month windows.
func NewRunLengthEngine(n int, policy NoRunPolicy) RunLengthEngine {
	return RunLengthEngine{Window: n, NoRun: policy}
}

// Compute returns the run-length raster for a chronological sequence of
// exactly Window flag rasters. Masked flags are dropped from a pixel's
// sequence before encoding. A pixel with no below-normal run is masked or
// set to 0 according to the engine's NoRunPolicy; this includes a pixel
// whose flags are all masked, so under NoRunZeroFill every pixel outside the
// AOI comes out as 0.
func (e RunLengthEngine) Compute(seq []*Raster) (*Raster, error) {
	if len(seq) != e.Window {
		return nil, fmt.Errorf("%w: got %d of %d flags", ErrIncompleteWindow, len(seq), e.Window)
	}
	g := seq[0].Grid
	for _, r := range seq[1:] {
		if !r.Grid.SameShape(g) {
			return nil, ErrShapeMismatch
		}
	}

	out := &Raster{Grid: g, Data: make([]float64, g.Len())}
	values := make([]float64, 0, e.Window)
	for i := range out.Data {
		values = values[:0]
		for _, r := range seq {
			if v := r.Data[i]; !Masked(v) {
				values = append(values, v)
			}
		}
		out.Data[i] = e.pixelRunLength(values)
	}
	return out, nil
}

func (e RunLengthEngine) pixelRunLength(values []float64) float64 {
	run, ok := LongestRun(EncodeRuns(values), FlagBelowNormal)
	if ok {
		return float64(run.Length)
	}
	if e.NoRun == NoRunZeroFill {
		return 0
	}
	return math.NaN()
}
