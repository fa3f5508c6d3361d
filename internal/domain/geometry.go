package domain

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// Grid describes a north-up raster grid in geographic coordinates (degrees).
type Grid struct {
	West     float64 `json:"west" msgpack:"west"`
	North    float64 `json:"north" msgpack:"north"`
	CellSize float64 `json:"cell_size" msgpack:"cell_size"`
	Width    int     `json:"width" msgpack:"width"`
	Height   int     `json:"height" msgpack:"height"`
}

// Len returns the number of pixels.
func (g Grid) Len() int { return g.Width * g.Height }

// East returns the eastern edge longitude.
func (g Grid) East() float64 { return g.West + float64(g.Width)*g.CellSize }

// South returns the southern edge latitude.
func (g Grid) South() float64 { return g.North - float64(g.Height)*g.CellSize }

// SameShape reports whether two grids have identical pixel dimensions.
func (g Grid) SameShape(o Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Center returns the lon/lat of the center of pixel i (row-major).
func (g Grid) Center(i int) (lon, lat float64) {
	row, col := i/g.Width, i%g.Width
	lon = g.West + (float64(col)+0.5)*g.CellSize
	lat = g.North - (float64(row)+0.5)*g.CellSize
	return lon, lat
}

// Locate returns the pixel index containing lon/lat, or false when outside.
func (g Grid) Locate(lon, lat float64) (int, bool) {
	if g.CellSize <= 0 {
		return 0, false
	}
	col := int(math.Floor((lon - g.West) / g.CellSize))
	row := int(math.Floor((g.North - lat) / g.CellSize))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, false
	}
	return row*g.Width + col, true
}

// Cell returns the extent of pixel i (row-major).
func (g Grid) Cell(i int) *geom.Bounds {
	row, col := i/g.Width, i%g.Width
	west := g.West + float64(col)*g.CellSize
	north := g.North - float64(row)*g.CellSize
	return &geom.Bounds{
		Min: geom.Point{X: west, Y: north - g.CellSize},
		Max: geom.Point{X: west + g.CellSize, Y: north},
	}
}

// pixel is one grid cell stored in a spatial index.
type pixel struct {
	geom.Polygonal
	index int
}

// spatialIndex puts every pixel of g into an R-tree.
func spatialIndex(g Grid) *rtree.Rtree {
	tree := rtree.NewTree(25, 50)
	for i := 0; i < g.Len(); i++ {
		tree.Insert(&pixel{Polygonal: g.Cell(i), index: i})
	}
	return tree
}

// Point is a lon/lat coordinate pair.
type Point struct {
	Lon float64 `yaml:"lon" json:"lon" msgpack:"lon"`
	Lat float64 `yaml:"lat" json:"lat" msgpack:"lat"`
}

// Polygon is a closed lon/lat ring. The closing vertex may be omitted.
type Polygon struct {
	Name string  `yaml:"name" json:"name" msgpack:"name"`
	Ring []Point `yaml:"ring" json:"ring" msgpack:"ring"`
}

// Geom returns the ring as a closed geom.Polygon, or nil when it has fewer
// than three vertices.
func (p Polygon) Geom() geom.Polygon {
	if len(p.Ring) < 3 {
		return nil
	}
	path := make(geom.Path, 0, len(p.Ring)+1)
	for _, pt := range p.Ring {
		path = append(path, geom.Point{X: pt.Lon, Y: pt.Lat})
	}
	if path[0] != path[len(path)-1] {
		path = append(path, path[0])
	}
	return geom.Polygon{path}
}

// Contains reports whether lon/lat lies inside the polygon or on its edge.
// A polygon with fewer than three vertices contains nothing.
func (p Polygon) Contains(lon, lat float64) bool {
	poly := p.Geom()
	if poly == nil {
		return false
	}
	return contains(poly, poly.Bounds(), lon, lat)
}

func contains(poly geom.Polygon, b *geom.Bounds, lon, lat float64) bool {
	if lon < b.Min.X || lon > b.Max.X || lat < b.Min.Y || lat > b.Max.Y {
		return false
	}
	return geom.Point{X: lon, Y: lat}.Within(poly) != geom.Outside
}

// Mask returns one bool per pixel of g, true where the pixel center lies
// inside the polygon.
func (p Polygon) Mask(g Grid) []bool {
	mask := make([]bool, g.Len())
	poly := p.Geom()
	if poly == nil {
		return mask
	}
	b := poly.Bounds()
	for i := range mask {
		lon, lat := g.Center(i)
		mask[i] = contains(poly, b, lon, lat)
	}
	return mask
}

// BoundsPolygon returns the rectangle covering the whole grid.
func BoundsPolygon(g Grid) Polygon {
	return Polygon{
		Name: "grid",
		Ring: []Point{
			{Lon: g.West, Lat: g.North},
			{Lon: g.East(), Lat: g.North},
			{Lon: g.East(), Lat: g.South()},
			{Lon: g.West, Lat: g.South()},
		},
	}
}
