package domain

import (
	"fmt"
	"sync"
)

// MonthlyAggregator reduces sub-monthly observations of one variable into a
// single raster per month on the analysis grid, clipped to the AOI. It is
// safe for concurrent use.
type MonthlyAggregator struct {
	variable Variable
	grid     Grid
	inside   []bool

	mu         sync.Mutex
	regridders map[Grid]*Regridder
}

// NewMonthlyAggregator precomputes the AOI mask on the analysis grid.
func NewMonthlyAggregator(v Variable, grid Grid, aoi Polygon) *MonthlyAggregator {
	return &MonthlyAggregator{
		variable: v,
		grid:     grid,
		inside:   aoi.Mask(grid),

		regridders: make(map[Grid]*Regridder),
	}
}

// Aggregate reduces the observations that fall inside key's month. It returns
// ok=false, with no error, when the month has no observations.
func (a *MonthlyAggregator) Aggregate(series []Observation, key MonthKey) (*Raster, bool, error) {
	start, end := key.Start(), key.End()
	stack := make([]*Raster, 0, len(series))
	for _, obs := range series {
		if obs.Raster == nil || obs.Time.Before(start) || !obs.Time.Before(end) {
			continue
		}
		stack = append(stack, a.convert(obs.Raster))
	}
	if len(stack) == 0 {
		return nil, false, nil
	}

	monthly, err := Reduce(stack, a.variable.Reducer)
	if err != nil {
		return nil, false, fmt.Errorf("aggregate %s %s: %w", a.variable.Band, key, err)
	}
	if a.variable.Resample && monthly.Grid != a.grid {
		monthly = a.regridder(monthly.Grid).Apply(monthly)
	}
	if !monthly.Grid.SameShape(a.grid) {
		return nil, false, fmt.Errorf("aggregate %s %s: %w", a.variable.Band, key, ErrShapeMismatch)
	}
	return monthly.ClipMask(a.inside), true, nil
}

// regridder returns the cached Regridder from source onto the analysis grid.
func (a *MonthlyAggregator) regridder(source Grid) *Regridder {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.regridders[source]
	if !ok {
		g = NewRegridder(source, a.grid)
		a.regridders[source] = g
	}
	return g
}

func (a *MonthlyAggregator) convert(r *Raster) *Raster {
	if a.variable.ObservationScale == 1 && a.variable.ObservationOffset == 0 {
		return r
	}
	return r.Affine(a.variable.ObservationScale, a.variable.ObservationOffset)
}
