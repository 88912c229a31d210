package domain

import (
	"fmt"
	"time"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Analysis modes.
const (
	ModeFuzzy     = "fuzzy"
	ModeThreshold = "threshold"
)

// Calibration records the historical-water breakpoints actually used.
type Calibration struct {
	Lo        float64 `json:"lo"`
	Hi        float64 `json:"hi"`
	Fallback  bool    `json:"fallback"`
	Reference bool    `json:"reference_blended"`
}

// Result is the complete output of one analysis. Partial results are never
// constructed: either every field is set or the run failed.
type Result struct {
	ID           string
	Analysis     Analysis
	Mode         string
	FloodMask    raster.Image
	AreaHectares float64
	TileURL      string
	Calibration  *Calibration
	CompletedAt  time.Time
}

// LayerURI renders the XYZ layer source string the UI shell hands to its map
// canvas.
func (r Result) LayerURI() string {
	return fmt.Sprintf("type=xyz&url=%s&zmin=0&zmax=22", r.TileURL)
}

// Summary is the wire form of a Result returned to callers and published
// downstream.
type Summary struct {
	ID              string       `json:"id"`
	EventDate       string       `json:"event_date"`
	DaysBefore      int          `json:"days_before"`
	DaysAfter       int          `json:"days_after"`
	Polarization    string       `json:"polarization"`
	Orbit           string       `json:"orbit"`
	Bounds          [4]float64   `json:"bounds"` // lon_min, lat_min, lon_max, lat_max
	Mode            string       `json:"mode"`
	AreaHectares    float64      `json:"area_hectares"`
	TileURLTemplate string       `json:"tile_url_template"`
	LayerURI        string       `json:"layer_uri"`
	Calibration     *Calibration `json:"calibration,omitempty"`
	CompletedAt     time.Time    `json:"completed_at"`
}

// Summary converts the result to its wire form.
func (r Result) Summary() Summary {
	b := r.Analysis.AOI.Bound()
	return Summary{
		ID:              r.ID,
		EventDate:       r.Analysis.Window.EventDate(),
		DaysBefore:      r.Analysis.Window.DaysBefore,
		DaysAfter:       r.Analysis.Window.DaysAfter,
		Polarization:    r.Analysis.Polarization,
		Orbit:           r.Analysis.Orbit,
		Bounds:          [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
		Mode:            r.Mode,
		AreaHectares:    r.AreaHectares,
		TileURLTemplate: r.TileURL,
		LayerURI:        r.LayerURI(),
		Calibration:     r.Calibration,
		CompletedAt:     r.CompletedAt,
	}
}
