package domain

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ZonalStat is the mean of one raster over one region.
type ZonalStat struct {
	Region   string
	Variable string
	Year     int
	Month    int
	Mean     float64
	Count    int
}

// ZonalMeans averages r over each region, counting only unmasked pixels whose
// centers fall inside the region. A region with no such pixel reports NaN.
// Candidate pixels come from an R-tree search on the region's bounds.
func ZonalMeans(r *Raster, regions []Polygon, variable string, key MonthKey) []ZonalStat {
	stats := make([]ZonalStat, 0, len(regions))
	tree := spatialIndex(r.Grid)
	values := make([]float64, 0, r.Grid.Len())
	for _, region := range regions {
		values = values[:0]
		if poly := region.Geom(); poly != nil {
			b := poly.Bounds()
			hits := tree.SearchIntersect(b)
			idx := make([]int, 0, len(hits))
			for _, s := range hits {
				idx = append(idx, s.(*pixel).index)
			}
			// Tree order is arbitrary; sum in pixel order for reproducible means.
			slices.Sort(idx)
			for _, i := range idx {
				lon, lat := r.Grid.Center(i)
				if !Masked(r.Data[i]) && contains(poly, b, lon, lat) {
					values = append(values, r.Data[i])
				}
			}
		}
		mean := math.NaN()
		if len(values) > 0 {
			mean = stat.Mean(values, nil)
		}
		stats = append(stats, ZonalStat{
			Region:   region.Name,
			Variable: variable,
			Year:     key.Year,
			Month:    int(key.Month),
			Mean:     mean,
			Count:    len(values),
		})
	}
	return stats
}
