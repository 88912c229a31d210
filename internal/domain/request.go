package domain

import (
	"strings"
	"time"
)

// Radar polarizations.
const (
	PolarizationVH = "VH"
	PolarizationVV = "VV"
)

// Orbit directions.
const (
	OrbitAscending  = "ASCENDING"
	OrbitDescending = "DESCENDING"
)

// AnalysisRequest is the parameter set collected by the UI shell.
type AnalysisRequest struct {
	EventDate    string     `json:"event_date"`
	DaysBefore   int        `json:"days_before"`
	DaysAfter    int        `json:"days_after"`
	Polarization string     `json:"polarization"`
	Orbit        string     `json:"orbit"`
	AOI          AOIRequest `json:"aoi"`
}

// AOIRequest accepts either a centred square (Lon, Lat, SizeKm) or a
// rectangle from two corners. Exactly one form must be given.
type AOIRequest struct {
	Lon    *float64 `json:"lon,omitempty"`
	Lat    *float64 `json:"lat,omitempty"`
	SizeKm *float64 `json:"size_km,omitempty"`

	LonMin *float64 `json:"lon_min,omitempty"`
	LatMin *float64 `json:"lat_min,omitempty"`
	LonMax *float64 `json:"lon_max,omitempty"`
	LatMax *float64 `json:"lat_max,omitempty"`
}

// Analysis is a validated request, ready for the pipeline.
type Analysis struct {
	Window       TimeWindow
	Polarization string
	Orbit        string
	AOI          AOI
}

// ParseRequest validates the caller parameters. Every failure is a
// DegenerateInputError, so nothing invalid ever reaches the backend.
func ParseRequest(req AnalysisRequest) (Analysis, error) {
	event, err := time.Parse(DateLayout, strings.TrimSpace(req.EventDate))
	if err != nil {
		return Analysis{}, Degenerate("event_date", "expected YYYY-MM-DD, got %q", req.EventDate)
	}

	window, err := NewTimeWindow(event, req.DaysBefore, req.DaysAfter)
	if err != nil {
		return Analysis{}, err
	}

	pol := strings.ToUpper(strings.TrimSpace(req.Polarization))
	if pol != PolarizationVH && pol != PolarizationVV {
		return Analysis{}, Degenerate("polarization", "must be VH or VV, got %q", req.Polarization)
	}

	orbit := strings.ToUpper(strings.TrimSpace(req.Orbit))
	if orbit != OrbitAscending && orbit != OrbitDescending {
		return Analysis{}, Degenerate("orbit", "must be ASCENDING or DESCENDING, got %q", req.Orbit)
	}

	aoi, err := req.AOI.build()
	if err != nil {
		return Analysis{}, err
	}

	return Analysis{
		Window:       window,
		Polarization: pol,
		Orbit:        orbit,
		AOI:          aoi,
	}, nil
}

func (r AOIRequest) build() (AOI, error) {
	square := r.Lon != nil || r.Lat != nil || r.SizeKm != nil
	rect := r.LonMin != nil || r.LatMin != nil || r.LonMax != nil || r.LatMax != nil

	switch {
	case square && rect:
		return AOI{}, Degenerate("aoi", "give either lon/lat/size_km or lon_min/lat_min/lon_max/lat_max, not both")
	case square:
		if r.Lon == nil || r.Lat == nil || r.SizeKm == nil {
			return AOI{}, Degenerate("aoi", "lon, lat and size_km are all required")
		}
		return NewSquareAOI(*r.Lon, *r.Lat, *r.SizeKm)
	case rect:
		if r.LonMin == nil || r.LatMin == nil || r.LonMax == nil || r.LatMax == nil {
			return AOI{}, Degenerate("aoi", "lon_min, lat_min, lon_max and lat_max are all required")
		}
		return NewRectAOI(*r.LonMin, *r.LatMin, *r.LonMax, *r.LatMax)
	default:
		return AOI{}, Degenerate("aoi", "missing")
	}
}
