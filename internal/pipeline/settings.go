package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/fuzzy"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Settings holds every tunable of the flood pipeline. DefaultSettings
// returns the calibrated values.
type Settings struct {
	Mode string

	// Change detection.
	SmoothingRadiusMeters float64
	EdgeThresholdDB       float64
	FloodVariation        fuzzy.Breakpoints
	ThresholdRatio        float64 // threshold mode only

	// Exclusion. The optical window is half-open: [OpticalStart, OpticalEnd).
	OpticalStart     time.Time
	OpticalEnd       time.Time
	MaxCloudPercent  float64
	MaxNDBI          float64
	MinPrecipitation float64 // mm over the event day

	// Historical water.
	WaterFallback       fuzzy.Breakpoints
	WaterStatsScale     float64
	PermanentOccurrence float64 // occurrence percent at or above which water is permanent

	// Terrain.
	Slope fuzzy.Breakpoints

	// Fusion.
	ConfidenceGate      float64
	DetectionWeight     float64
	TerrainWeight       float64
	ContextRadiusPixels float64
	Context             fuzzy.Breakpoints

	// Publication.
	AreaScale     float64
	MaxPixels     float64
	Visualization raster.Visualization
}

// DefaultSettings returns the calibrated pipeline constants.
func DefaultSettings() Settings {
	return Settings{
		Mode: domain.ModeFuzzy,

		SmoothingRadiusMeters: 50,
		EdgeThresholdDB:       -30,
		FloodVariation:        fuzzy.MustBreakpoints(1.05, 1.20),
		ThresholdRatio:        1.1,

		OpticalStart:     time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		OpticalEnd:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxCloudPercent:  20,
		MaxNDBI:          0.2,
		MinPrecipitation: 5,

		WaterFallback:       fuzzy.MustBreakpoints(0.05, 0.30),
		WaterStatsScale:     30,
		PermanentOccurrence: 30,

		Slope: fuzzy.MustBreakpoints(0, 5),

		ConfidenceGate:      0.8,
		DetectionWeight:     6,
		TerrainWeight:       1,
		ContextRadiusPixels: 5,
		Context:             fuzzy.MustBreakpoints(-0.2, 0.2),

		AreaScale: 10,
		MaxPixels: 1e13,
		Visualization: raster.Visualization{
			Min:     0,
			Max:     1,
			Palette: []string{"ffffff", "0000ff"},
		},
	}
}

// Validate rejects settings that cannot produce a meaningful analysis.
func (s Settings) Validate() error {
	if s.Mode != domain.ModeFuzzy && s.Mode != domain.ModeThreshold {
		return domain.Degenerate("mode", "must be %q or %q, got %q", domain.ModeFuzzy, domain.ModeThreshold, s.Mode)
	}
	for _, r := range []struct {
		name string
		bp   fuzzy.Breakpoints
	}{
		{"flood variation", s.FloodVariation},
		{"water fallback", s.WaterFallback},
		{"slope", s.Slope},
		{"context", s.Context},
	} {
		if _, err := fuzzy.NewBreakpoints(r.bp.Lo, r.bp.Hi); err != nil {
			return fmt.Errorf("%s: %w", r.name, err)
		}
	}
	if !(s.SmoothingRadiusMeters > 0) || !(s.ContextRadiusPixels > 0) {
		return domain.Degenerate("radius", "smoothing and context radii must be positive")
	}
	if !s.OpticalStart.Before(s.OpticalEnd) {
		return domain.Degenerate("optical window", "start %s is not before end %s",
			s.OpticalStart.Format(domain.DateLayout), s.OpticalEnd.Format(domain.DateLayout))
	}
	if s.DetectionWeight < 0 || s.TerrainWeight < 0 || !(s.DetectionWeight+s.TerrainWeight > 0) {
		return domain.Degenerate("fusion weights", "must be non-negative with a positive sum")
	}
	if !(s.AreaScale > 0) || !(s.WaterStatsScale > 0) {
		return domain.Degenerate("scale", "reduction scales must be positive")
	}
	if len(s.Visualization.Palette) == 0 {
		return domain.Degenerate("visualization", "palette is empty")
	}
	return nil
}

// Collections names the datasets the pipeline reads.
type Collections struct {
	Radar         string
	Optical       string
	Precipitation string
	Water         string
	Elevation     string
}

// DefaultCollections returns the public dataset identifiers of the hosted
// engine.
func DefaultCollections() Collections {
	return Collections{
		Radar:         "COPERNICUS/S1_GRD",
		Optical:       "COPERNICUS/S2_SR_HARMONIZED",
		Precipitation: "UCSB-CHG/CHIRPS/DAILY",
		Water:         "JRC/GSW1_4/GlobalSurfaceWater",
		Elevation:     "USGS/SRTMGL1_003",
	}
}

// Band names within the datasets.
const (
	bandQA            = "QA60"
	bandSWIR          = "B11"
	bandNIR           = "B8"
	bandPrecipitation = "precipitation"
	bandOccurrence    = "occurrence"
	bandElevation     = "elevation"
)

// Scene metadata properties used for filtering.
const (
	propInstrumentMode = "instrumentMode"
	propPolarisation   = "transmitterReceiverPolarisation"
	propOrbitPass      = "orbitProperties_pass"
	propResolution     = "resolution_meters"
	propCloudyPercent  = "CLOUDY_PIXEL_PERCENTAGE"
)
