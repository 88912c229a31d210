package memory

import (
	"fmt"
	"math"

	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// reduce aggregates the valid pixels of g whose centre lies in the region.
// Statistics over zero pixels are left undefined.
func reduce(g *Grid, req raster.ReduceRequest) (raster.Stats, error) {
	if req.Reducer != raster.ReducerSum && req.Reducer != raster.ReducerMeanStdDev {
		return nil, fmt.Errorf("unsupported reducer %q", req.Reducer)
	}

	var count int
	var total, mean, m2 float64
	for i := range g.values {
		if !g.valid[i] || !planar.PolygonContains(req.Region, g.spec.Center(i)) {
			continue
		}
		v := g.values[i]
		count++
		total += v
		delta := v - mean
		mean += delta / float64(count)
		m2 += delta * (v - mean)
	}

	if req.MaxPixels > 0 && float64(count) > req.MaxPixels && !req.BestEffort {
		return nil, fmt.Errorf("too many pixels in region: %d > %.0f", count, req.MaxPixels)
	}

	stats := raster.Stats{}
	if count == 0 {
		return stats, nil
	}
	if req.Reducer == raster.ReducerSum {
		stats[raster.StatSum] = total
	} else {
		stats[raster.StatMean] = mean
		stats[raster.StatStdDev] = math.Sqrt(m2 / float64(count))
	}
	return stats, nil
}
