package pipeline

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/fuzzy"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Water is the output of the historical-water stage.
type Water struct {
	Membership  raster.Image // FM_OW
	Calibration domain.Calibration
}

// CalibrateWater derives the occurrence breakpoints from the AOI itself and
// scores ephemeral water. Undefined statistics fall back to
// Settings.WaterFallback. When reference is non-empty its extent overrides
// the membership.
func CalibrateWater(ctx context.Context, backend raster.Backend, a domain.Analysis, s Settings, c Collections, reference orb.MultiPolygon) (Water, error) {
	occurrence := raster.LoadImage(c.Water).Select(bandOccurrence)
	norm := occurrence.Divide(raster.Constant(100))

	stats, err := backend.ReduceRegion(ctx, norm.UpdateMask(occurrence.Gt(raster.Constant(0))), raster.ReduceRequest{
		Reducer:    raster.ReducerMeanStdDev,
		Region:     a.AOI.Polygon(),
		Scale:      s.WaterStatsScale,
		BestEffort: true,
	})
	if err != nil {
		return Water{}, classify("reduce", err)
	}

	bp, fallback := waterBreakpoints(stats, s.WaterFallback)
	w := Water{
		Membership:  fuzzy.ZImage(norm, bp).UpdateMask(occurrence.Lt(raster.Constant(s.PermanentOccurrence))),
		Calibration: domain.Calibration{Lo: bp.Lo, Hi: bp.Hi, Fallback: fallback},
	}

	if len(reference) > 0 {
		extent := raster.Constant(0).Paint(reference, 1).SelfMask()
		w.Membership = w.Membership.Blend(extent)
		w.Calibration.Reference = true
	}
	return w, nil
}

// waterBreakpoints turns mean and standard deviation into (mean, mean+2σ)
// clamped to [0, 1].
func waterBreakpoints(stats raster.Stats, fallback fuzzy.Breakpoints) (fuzzy.Breakpoints, bool) {
	mean, okMean := stats.Get(raster.StatMean)
	std, okStd := stats.Get(raster.StatStdDev)
	if !okMean || !okStd {
		return fallback, true
	}
	return fuzzy.Widen(mean, mean+2*std), false
}
