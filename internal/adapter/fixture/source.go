package fixture

import (
	"context"
	"slices"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
)

// Source serves an in-memory Archive as a domain.RasterSource.
type Source struct {
	bands map[string][]domain.Observation
}

// NewSource indexes the archive by band, in time order.
func NewSource(a *Archive) (*Source, error) {
	s := &Source{bands: map[string][]domain.Observation{}}
	for _, rec := range a.Records {
		r, err := rec.Raster()
		if err != nil {
			return nil, err
		}
		s.bands[rec.Band] = append(s.bands[rec.Band], domain.Observation{Time: rec.Time, Raster: r})
	}
	for _, obs := range s.bands {
		slices.SortStableFunc(obs, func(a, b domain.Observation) int { return a.Time.Compare(b.Time) })
	}
	return s, nil
}

// Open reads and indexes the archive at path.
func Open(path string) (*Source, error) {
	a, err := ReadArchive(path)
	if err != nil {
		return nil, err
	}
	return NewSource(a)
}

// Series implements domain.RasterSource. Query bounds are ignored: the
// fixture covers a single extent.
func (s *Source) Series(ctx context.Context, q domain.Query) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs := s.bands[q.Band]
	lo, _ := slices.BinarySearchFunc(obs, q.Start, func(o domain.Observation, t time.Time) int { return o.Time.Compare(t) })
	hi, _ := slices.BinarySearchFunc(obs, q.End, func(o domain.Observation, t time.Time) int { return o.Time.Compare(t) })
	if lo >= hi {
		return nil, nil
	}
	out := make([]domain.Observation, hi-lo)
	for i, o := range obs[lo:hi] {
		out[i] = domain.Observation{Time: o.Time, Raster: o.Raster.Clone()}
	}
	return out, nil
}

// Bands lists the bands present in the archive.
func (s *Source) Bands() []string {
	out := make([]string, 0, len(s.bands))
	for b := range s.bands {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}
