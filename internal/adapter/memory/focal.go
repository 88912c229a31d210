package memory

import (
	"fmt"
	"math"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

type offset struct{ dc, dr int }

// kernelOffsets lists the neighbourhood of a focal kernel in pixel steps.
func kernelOffsets(spec GridSpec, radius float64, kernel, units string) ([]offset, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("focal radius must be positive, got %v", radius)
	}
	rx, ry := radius, radius
	switch units {
	case raster.UnitsPixels:
	case raster.UnitsMeters, "":
		dx, dy := spec.PixelSizeMeters()
		rx, ry = radius/dx, radius/dy
	default:
		return nil, fmt.Errorf("unknown focal units %q", units)
	}

	cx, cy := int(math.Floor(rx)), int(math.Floor(ry))
	var offs []offset
	for dr := -cy; dr <= cy; dr++ {
		for dc := -cx; dc <= cx; dc++ {
			switch kernel {
			case raster.KernelSquare:
			case raster.KernelCircle:
				nx, ny := float64(dc)/rx, float64(dr)/ry
				if nx*nx+ny*ny > 1 {
					continue
				}
			default:
				return nil, fmt.Errorf("unknown focal kernel %q", kernel)
			}
			offs = append(offs, offset{dc, dr})
		}
	}
	return offs, nil
}

// focalMean averages the valid neighbours of each valid pixel. Pixels that
// are masked stay masked.
func focalMean(g *Grid, radius float64, kernel, units string) (*Grid, error) {
	offs, err := kernelOffsets(g.spec, radius, kernel, units)
	if err != nil {
		return nil, err
	}
	cols, rows := g.spec.Cols, g.spec.Rows
	out := newEmptyGrid(g.spec)
	for i := range out.values {
		if !g.valid[i] {
			continue
		}
		col, row := i%cols, i/cols
		var total float64
		var n int
		for _, o := range offs {
			c, r := col+o.dc, row+o.dr
			if c < 0 || c >= cols || r < 0 || r >= rows {
				continue
			}
			j := r*cols + c
			if g.valid[j] {
				total += g.values[j]
				n++
			}
		}
		out.set(i, total/float64(n), n > 0)
	}
	return out, nil
}

// slope computes terrain slope in degrees with Horn's method. Missing or
// masked neighbours take the centre value.
func slope(dem *Grid) *Grid {
	spec := dem.spec
	dx, dy := spec.PixelSizeMeters()
	cols, rows := spec.Cols, spec.Rows
	out := newEmptyGrid(spec)

	for i := range out.values {
		if !dem.valid[i] {
			continue
		}
		col, row := i%cols, i/cols
		z := func(dc, dr int) float64 {
			c, r := col+dc, row+dr
			if c < 0 || c >= cols || r < 0 || r >= rows {
				return dem.values[i]
			}
			j := r*cols + c
			if !dem.valid[j] {
				return dem.values[i]
			}
			return dem.values[j]
		}
		a, b, c := z(-1, -1), z(0, -1), z(1, -1)
		d, f := z(-1, 0), z(1, 0)
		g, h, k := z(-1, 1), z(0, 1), z(1, 1)

		dzdx := ((c + 2*f + k) - (a + 2*d + g)) / (8 * dx)
		dzdy := ((g + 2*h + k) - (a + 2*b + c)) / (8 * dy)
		rise := math.Hypot(dzdx, dzdy)
		out.set(i, math.Atan(rise)*180/math.Pi, true)
	}
	return out
}
