package domain

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Raster is a single-band grid of float64 pixels. NaN marks a masked pixel.
// Rasters are never mutated after being placed in a store.
type Raster struct {
	Grid Grid      `json:"grid" msgpack:"grid"`
	Data []float64 `json:"data" msgpack:"data"`
}

// NewRaster allocates a fully masked raster on g.
func NewRaster(g Grid) *Raster {
	return Fill(g, math.NaN())
}

// Fill allocates a raster on g with every pixel set to v.
func Fill(g Grid, v float64) *Raster {
	data := make([]float64, g.Len())
	for i := range data {
		data[i] = v
	}
	return &Raster{Grid: g, Data: data}
}

// Masked reports whether a value represents a masked pixel.
func Masked(v float64) bool { return math.IsNaN(v) }

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	data := make([]float64, len(r.Data))
	copy(data, r.Data)
	return &Raster{Grid: r.Grid, Data: data}
}

// Valid counts unmasked pixels.
func (r *Raster) Valid() int {
	n := 0
	for _, v := range r.Data {
		if !Masked(v) {
			n++
		}
	}
	return n
}

// Map applies fn to every unmasked pixel; masked pixels stay masked.
func (r *Raster) Map(fn func(float64) float64) *Raster {
	out := &Raster{Grid: r.Grid, Data: make([]float64, len(r.Data))}
	for i, v := range r.Data {
		if Masked(v) {
			out.Data[i] = v
			continue
		}
		out.Data[i] = fn(v)
	}
	return out
}

// Affine returns scale*v + offset per pixel.
func (r *Raster) Affine(scale, offset float64) *Raster {
	return r.Map(func(v float64) float64 { return scale*v + offset })
}

// Unmask replaces masked pixels with v.
func (r *Raster) Unmask(v float64) *Raster {
	out := r.Clone()
	for i, x := range out.Data {
		if Masked(x) {
			out.Data[i] = v
		}
	}
	return out
}

// Combine applies fn pixelwise to two rasters of the same shape. A pixel
// masked in either input is masked in the output.
func Combine(a, b *Raster, fn func(x, y float64) float64) (*Raster, error) {
	if !a.Grid.SameShape(b.Grid) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch,
			a.Grid.Width, a.Grid.Height, b.Grid.Width, b.Grid.Height)
	}
	out := &Raster{Grid: a.Grid, Data: make([]float64, len(a.Data))}
	for i := range a.Data {
		x, y := a.Data[i], b.Data[i]
		if Masked(x) || Masked(y) {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = fn(x, y)
	}
	return out, nil
}

// Sub returns a - b.
func Sub(a, b *Raster) (*Raster, error) {
	return Combine(a, b, func(x, y float64) float64 { return x - y })
}

// Div returns a / b.
func Div(a, b *Raster) (*Raster, error) {
	return Combine(a, b, func(x, y float64) float64 { return x / y })
}

// Mul returns a * b.
func Mul(a, b *Raster) (*Raster, error) {
	return Combine(a, b, func(x, y float64) float64 { return x * y })
}

// Reducer collapses the unmasked values of one pixel across a stack.
type Reducer int

const (
	ReduceMean Reducer = iota
	ReduceSum
)

func (r Reducer) String() string {
	switch r {
	case ReduceMean:
		return "mean"
	case ReduceSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Reduce collapses a stack of same-shape rasters pixel by pixel. Masked
// inputs are skipped; a pixel masked in every input stays masked. An empty
// stack returns ErrMissingData.
func Reduce(stack []*Raster, reducer Reducer) (*Raster, error) {
	if len(stack) == 0 {
		return nil, ErrMissingData
	}
	g := stack[0].Grid
	for _, r := range stack[1:] {
		if !r.Grid.SameShape(g) {
			return nil, fmt.Errorf("%w: reduce %dx%d with %dx%d", ErrShapeMismatch,
				g.Width, g.Height, r.Grid.Width, r.Grid.Height)
		}
	}

	out := &Raster{Grid: g, Data: make([]float64, g.Len())}
	buf := make([]float64, 0, len(stack))
	for i := range out.Data {
		buf = buf[:0]
		for _, r := range stack {
			if v := r.Data[i]; !Masked(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			out.Data[i] = math.NaN()
			continue
		}
		switch reducer {
		case ReduceSum:
			out.Data[i] = floats.Sum(buf)
		default:
			out.Data[i] = stat.Mean(buf, nil)
		}
	}
	return out, nil
}

// Mean is Reduce with ReduceMean.
func Mean(stack []*Raster) (*Raster, error) {
	return Reduce(stack, ReduceMean)
}

// Clip masks every pixel whose center falls outside the polygon. The mask is
// computed on the raster's own grid.
func (r *Raster) Clip(aoi Polygon) *Raster {
	return r.ClipMask(aoi.Mask(r.Grid))
}

// ClipMask masks every pixel where inside is false. A mask of the wrong
// length leaves the raster unchanged.
func (r *Raster) ClipMask(inside []bool) *Raster {
	out := r.Clone()
	if len(inside) != len(out.Data) {
		return out
	}
	for i, ok := range inside {
		if !ok {
			out.Data[i] = math.NaN()
		}
	}
	return out
}

// Resample projects r onto target with a one-off Regridder.
func (r *Raster) Resample(target Grid) *Raster {
	if r.Grid == target {
		return r.Clone()
	}
	return NewRegridder(r.Grid, target).Apply(r)
}

// overlap is the share of one source pixel inside a target pixel.
type overlap struct {
	source int
	area   float64
}

// Regridder holds the pixel overlaps between two grids. Each target pixel
// takes the area-weighted mean of the unmasked source pixels it intersects;
// when none are unmasked, it takes the source pixel under its own center, if
// any.
type Regridder struct {
	from, to Grid
	overlaps [][]overlap
	fallback []int
}

// NewRegridder indexes the source pixels in an R-tree and records, for every
// target pixel, the intersection area with each source pixel it touches.
func NewRegridder(from, to Grid) *Regridder {
	tree := spatialIndex(from)
	g := &Regridder{
		from:     from,
		to:       to,
		overlaps: make([][]overlap, to.Len()),
		fallback: make([]int, to.Len()),
	}
	for j := range g.overlaps {
		cell := to.Cell(j)
		for _, s := range tree.SearchIntersect(cell) {
			px := s.(*pixel)
			isect := cell.Intersection(px.Polygonal)
			if isect == nil {
				continue
			}
			if a := math.Abs(isect.Area()); a > 0 {
				g.overlaps[j] = append(g.overlaps[j], overlap{source: px.index, area: a})
			}
		}
		slices.SortFunc(g.overlaps[j], func(a, b overlap) int { return a.source - b.source })
		g.fallback[j] = -1
		if i, ok := from.Locate(to.Center(j)); ok {
			g.fallback[j] = i
		}
	}
	return g
}

// Apply regrids r, which must lie on the source grid. A raster on any other
// grid is returned unchanged so the caller's shape check reports it.
func (g *Regridder) Apply(r *Raster) *Raster {
	if r.Grid != g.from {
		return r
	}
	out := NewRaster(g.to)
	for j, cover := range g.overlaps {
		var sum, area float64
		for _, o := range cover {
			if v := r.Data[o.source]; !Masked(v) {
				sum += v * o.area
				area += o.area
			}
		}
		switch {
		case area > 0:
			out.Data[j] = sum / area
		case g.fallback[j] >= 0:
			out.Data[j] = r.Data[g.fallback[j]]
		}
	}
	return out
}
