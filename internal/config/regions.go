package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// Regions is the area of interest plus the admin regions used for zonal
// statistics.
type Regions struct {
	AOI     domain.Polygon   `yaml:"aoi"`
	Regions []domain.Polygon `yaml:"regions"`
}

// LoadRegions reads a YAML regions file. An empty path yields the whole grid
// as the AOI and no admin regions.
//
//	aoi:
//	  name: uganda
//	  ring: [{lon: 29.5, lat: 4.3}, {lon: 35.0, lat: 4.3}, ...]
//	regions:
//	  - name: Northern
//	    ring: [...]
func LoadRegions(path string, grid domain.Grid) (*Regions, error) {
	if path == "" {
		return &Regions{AOI: domain.BoundsPolygon(grid)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	var r Regions
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}

	if len(r.AOI.Ring) == 0 {
		r.AOI = domain.BoundsPolygon(grid)
	} else if len(r.AOI.Ring) < 3 {
		return nil, fmt.Errorf("regions file: aoi %q needs at least 3 vertices", r.AOI.Name)
	}
	for i, region := range r.Regions {
		if region.Name == "" {
			return nil, fmt.Errorf("regions file: region %d has no name", i)
		}
		if len(region.Ring) < 3 {
			return nil, fmt.Errorf("regions file: region %q needs at least 3 vertices", region.Name)
		}
	}
	return &r, nil
}
