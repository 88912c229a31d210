package pipeline

import (
	"context"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/fuzzy"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Change is the output of change detection.
type Change struct {
	Before     raster.Image // smoothed pre-event composite
	After      raster.Image // smoothed post-event composite
	Difference raster.Image // after / before
	// FloodVariation is S(difference) self-masked; in threshold mode it is
	// the binary difference > ThresholdRatio mask instead.
	FloodVariation raster.Image
}

// RadarCollection filters the radar archive to the analysis polarisation,
// orbit pass and area of interest.
func RadarCollection(c Collections, a domain.Analysis) raster.Collection {
	return raster.Load(c.Radar).
		Filter(raster.Eq(propInstrumentMode, "IW")).
		Filter(raster.ListContains(propPolarisation, a.Polarization)).
		Filter(raster.Eq(propOrbitPass, a.Orbit)).
		Filter(raster.Eq(propResolution, 10)).
		FilterBounds(a.AOI.Polygon()).
		Select(a.Polarization)
}

// DetectChange composites the radar windows and scores backscatter change.
// Both windows are counted before any other work; an empty window is a
// DataAvailabilityError.
func DetectChange(ctx context.Context, backend raster.Backend, a domain.Analysis, s Settings, c Collections) (Change, error) {
	radar := RadarCollection(c, a)
	beforeStart, beforeEnd := a.Window.Before()
	afterStart, afterEnd := a.Window.After()
	before := radar.FilterDate(beforeStart, beforeEnd)
	after := radar.FilterDate(afterStart, afterEnd)

	for _, w := range []struct {
		name string
		coll raster.Collection
	}{{"before", before}, {"after", after}} {
		n, err := backend.Size(ctx, w.coll)
		if err != nil {
			return Change{}, classify("size", err)
		}
		if n == 0 {
			return Change{}, &domain.DataAvailabilityError{Window: w.name, Polarization: a.Polarization, Orbit: a.Orbit}
		}
	}

	region := a.AOI.Polygon()
	composite := func(coll raster.Collection) raster.Image {
		return coll.Map(MaskEdge(s.EdgeThresholdDB)).
			Median().
			Clip(region).
			FocalMean(s.SmoothingRadiusMeters, raster.KernelCircle, raster.UnitsMeters)
	}
	ch := Change{Before: composite(before), After: composite(after)}
	ch.Difference = ch.After.Divide(ch.Before).Rename("difference")

	if s.Mode == domain.ModeThreshold {
		ch.FloodVariation = ch.Difference.Gt(raster.Constant(s.ThresholdRatio)).SelfMask()
	} else {
		ch.FloodVariation = fuzzy.SImage(ch.Difference, s.FloodVariation).SelfMask()
	}
	return ch, nil
}
