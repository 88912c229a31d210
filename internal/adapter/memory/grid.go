package memory

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// GridSpec is a north-up lon/lat raster layout. Every grid held by one
// Backend shares the same spec, so pixelwise operations never resample.
type GridSpec struct {
	West        float64 `json:"west"`
	North       float64 `json:"north"`
	PixelWidth  float64 `json:"pixel_width"`  // degrees of longitude
	PixelHeight float64 `json:"pixel_height"` // degrees of latitude
	Cols        int     `json:"cols"`
	Rows        int     `json:"rows"`
}

// SpecForBound lays a cols x rows grid exactly over b.
func SpecForBound(b orb.Bound, cols, rows int) GridSpec {
	return GridSpec{
		West:        b.Min.Lon(),
		North:       b.Max.Lat(),
		PixelWidth:  (b.Max.Lon() - b.Min.Lon()) / float64(cols),
		PixelHeight: (b.Max.Lat() - b.Min.Lat()) / float64(rows),
		Cols:        cols,
		Rows:        rows,
	}
}

// Validate rejects empty or inverted layouts.
func (s GridSpec) Validate() error {
	if s.Cols <= 0 || s.Rows <= 0 {
		return fmt.Errorf("grid must have positive dimensions, got %dx%d", s.Cols, s.Rows)
	}
	if !(s.PixelWidth > 0) || !(s.PixelHeight > 0) {
		return errors.New("grid pixel size must be positive")
	}
	return nil
}

// Len is the number of pixels.
func (s GridSpec) Len() int { return s.Cols * s.Rows }

// Geotransform returns the GDAL-style affine transform of the grid.
func (s GridSpec) Geotransform() [6]float64 {
	return [6]float64{s.West, s.PixelWidth, 0, s.North, 0, -s.PixelHeight}
}

func pixelToLonLat(gt [6]float64, px, py float64) (lon, lat float64) {
	lon = gt[0] + px*gt[1] + py*gt[2]
	lat = gt[3] + px*gt[4] + py*gt[5]
	return lon, lat
}

// Center returns the lon/lat of the centre of pixel i.
func (s GridSpec) Center(i int) orb.Point {
	col, row := i%s.Cols, i/s.Cols
	lon, lat := pixelToLonLat(s.Geotransform(), float64(col)+0.5, float64(row)+0.5)
	return orb.Point{lon, lat}
}

// Cell returns the footprint of pixel i.
func (s GridSpec) Cell(i int) orb.Polygon {
	col, row := i%s.Cols, i/s.Cols
	gt := s.Geotransform()
	west, north := pixelToLonLat(gt, float64(col), float64(row))
	east, south := pixelToLonLat(gt, float64(col+1), float64(row+1))
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}.ToPolygon()
}

// Bound is the extent of the whole grid.
func (s GridSpec) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{s.West, s.North - float64(s.Rows)*s.PixelHeight},
		Max: orb.Point{s.West + float64(s.Cols)*s.PixelWidth, s.North},
	}
}

// PixelSizeMeters approximates the ground size of one pixel at the grid
// centre.
func (s GridSpec) PixelSizeMeters() (dx, dy float64) {
	c := s.Bound().Center()
	dx = geo.Distance(c, orb.Point{c.Lon() + s.PixelWidth, c.Lat()})
	dy = geo.Distance(c, orb.Point{c.Lon(), c.Lat() + s.PixelHeight})
	return dx, dy
}

// Grid is one band of pixel values with a parallel validity bitmap. Masked
// pixels are excluded from every combination and reduction; their stored
// value is meaningless. Grids are never modified once handed to the
// evaluator.
type Grid struct {
	spec   GridSpec
	values []float64
	valid  []bool
}

// NewGrid copies values into a grid of the given layout. Missing trailing
// values are masked and extra values are dropped. NaN values are masked.
func NewGrid(spec GridSpec, values []float64) *Grid {
	g := newEmptyGrid(spec)
	n := min(len(values), len(g.values))
	for i := 0; i < n; i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		g.values[i] = values[i]
		g.valid[i] = true
	}
	return g
}

// NewConstantGrid is a fully valid grid with value v everywhere.
func NewConstantGrid(spec GridSpec, v float64) *Grid {
	g := newEmptyGrid(spec)
	for i := range g.values {
		g.values[i] = v
		g.valid[i] = true
	}
	return g
}

// newEmptyGrid is a fully masked grid.
func newEmptyGrid(spec GridSpec) *Grid {
	n := spec.Len()
	return &Grid{spec: spec, values: make([]float64, n), valid: make([]bool, n)}
}

// Spec returns the layout of the grid.
func (g *Grid) Spec() GridSpec { return g.spec }

// Len is the number of pixels.
func (g *Grid) Len() int { return len(g.values) }

// Value returns the stored value of pixel i.
func (g *Grid) Value(i int) float64 { return g.values[i] }

// Valid reports whether pixel i is unmasked.
func (g *Grid) Valid(i int) bool { return g.valid[i] }

// Invalidate masks pixel i. Use it only while building fixtures.
func (g *Grid) Invalidate(i int) { g.valid[i] = false }

// Set stores a valid value at pixel i. Use it only while building fixtures.
func (g *Grid) Set(i int, v float64) {
	g.values[i] = v
	g.valid[i] = !math.IsNaN(v)
}

// ValidCount is the number of unmasked pixels.
func (g *Grid) ValidCount() int {
	n := 0
	for _, ok := range g.valid {
		if ok {
			n++
		}
	}
	return n
}

func (g *Grid) set(i int, v float64, ok bool) {
	if ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		g.values[i] = v
		g.valid[i] = true
		return
	}
	g.values[i] = 0
	g.valid[i] = false
}
