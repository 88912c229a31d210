package pipeline

import (
	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// BuiltUpIndex is the NDBI of a cloud-masked optical median over the fixed
// reference window.
func BuiltUpIndex(a domain.Analysis, s Settings, c Collections) raster.Image {
	return raster.Load(c.Optical).
		FilterDate(s.OpticalStart, s.OpticalEnd).
		FilterBounds(a.AOI.Polygon()).
		Filter(raster.Lt(propCloudyPercent, s.MaxCloudPercent)).
		Map(MaskClouds).
		Median().
		NormalizedDifference(bandSWIR, bandNIR)
}

// EventPrecipitation is the rainfall accumulated over the event day.
func EventPrecipitation(a domain.Analysis, c Collections) raster.Image {
	start, end := a.Window.EventDay()
	return raster.Load(c.Precipitation).
		FilterDate(start, end).
		FilterBounds(a.AOI.Polygon()).
		Select(bandPrecipitation).
		Sum()
}

// Exclude narrows the flood-variation membership: built-up pixels go first,
// then pixels without enough event-day rainfall. Validity only ever shrinks.
func Exclude(floodVariation, ndbi, precipitation raster.Image, s Settings) raster.Image {
	return floodVariation.
		UpdateMask(ndbi.Lte(raster.Constant(s.MaxNDBI))).
		UpdateMask(precipitation.Gt(raster.Constant(s.MinPrecipitation)))
}
