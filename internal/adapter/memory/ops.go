package memory

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// combine applies fn to pixels valid in both grids. fn may invalidate the
// result, e.g. on division by zero.
func combine(a, b *Grid, fn func(x, y float64) (float64, bool)) *Grid {
	out := newEmptyGrid(a.spec)
	for i := range out.values {
		if !a.valid[i] || !b.valid[i] {
			continue
		}
		v, ok := fn(a.values[i], b.values[i])
		out.set(i, v, ok)
	}
	return out
}

func unary(g *Grid, fn func(float64) float64) *Grid {
	out := newEmptyGrid(g.spec)
	for i := range out.values {
		if g.valid[i] {
			out.set(i, fn(g.values[i]), true)
		}
	}
	return out
}

// updateMask keeps g where mask is valid and non-zero.
func updateMask(g, mask *Grid) *Grid {
	out := newEmptyGrid(g.spec)
	for i := range out.values {
		out.set(i, g.values[i], g.valid[i] && mask.valid[i] && mask.values[i] != 0)
	}
	return out
}

func selfMask(g *Grid) *Grid {
	return updateMask(g, g)
}

// blend lets top win wherever it is valid.
func blend(base, top *Grid) *Grid {
	out := newEmptyGrid(base.spec)
	for i := range out.values {
		switch {
		case top.valid[i]:
			out.set(i, top.values[i], true)
		case base.valid[i]:
			out.set(i, base.values[i], true)
		}
	}
	return out
}

// clip drops pixels whose centre falls outside region.
func clip(g *Grid, region orb.Polygon) *Grid {
	out := newEmptyGrid(g.spec)
	for i := range out.values {
		if g.valid[i] && planar.PolygonContains(region, g.spec.Center(i)) {
			out.set(i, g.values[i], true)
		}
	}
	return out
}

// paint burns value into every pixel whose centre falls inside polygons.
// Other pixels keep their input value and validity.
func paint(g *Grid, polygons orb.MultiPolygon, value float64) *Grid {
	out := newEmptyGrid(g.spec)
	for i := range out.values {
		if planar.MultiPolygonContains(polygons, g.spec.Center(i)) {
			out.set(i, value, true)
			continue
		}
		out.set(i, g.values[i], g.valid[i])
	}
	return out
}

// pixelArea is the spherical area of each cell in square metres.
func pixelArea(spec GridSpec) *Grid {
	out := newEmptyGrid(spec)
	for i := range out.values {
		out.set(i, math.Abs(geo.Area(spec.Cell(i))), true)
	}
	return out
}

func median(vals []float64) float64 {
	slices.Sort(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

// composite reduces a collection pixelwise per band, ignoring masked
// values. An empty collection still yields its selected bands, fully
// masked, so downstream masks narrow to nothing instead of failing. With
// no known band names it yields a single anyBand.
func composite(spec GridSpec, c collection, reducer func([]float64) float64) []Band {
	names := c.selected
	if len(c.scenes) > 0 {
		names = bandNames(c.scenes[0].bands)
	}
	if len(names) == 0 {
		names = []string{anyBand}
	}

	out := make([]Band, len(names))
	vals := make([]float64, 0, len(c.scenes))
	for bi, name := range names {
		grids := make([]*Grid, 0, len(c.scenes))
		for _, s := range c.scenes {
			if idx := slices.IndexFunc(s.bands, func(b Band) bool { return b.Name == name }); idx >= 0 {
				grids = append(grids, s.bands[idx].Grid)
			}
		}
		g := newEmptyGrid(spec)
		for i := range g.values {
			vals = vals[:0]
			for _, src := range grids {
				if src.valid[i] {
					vals = append(vals, src.values[i])
				}
			}
			if len(vals) > 0 {
				g.set(i, reducer(vals), true)
			}
		}
		out[bi] = Band{Name: name, Grid: g}
	}
	return out
}
