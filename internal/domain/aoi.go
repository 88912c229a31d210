package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Kilometers per degree of latitude, and of longitude at the equator.
const (
	kmPerDegreeLat = 110.574
	kmPerDegreeLon = 111.320
)

// AOI is an axis-aligned area of interest in EPSG:4326.
type AOI struct {
	bound orb.Bound
}

// NewSquareAOI builds a square of sizeKm per side centred on (lon, lat).
func NewSquareAOI(lon, lat, sizeKm float64) (AOI, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return AOI{}, err
	}
	if !(sizeKm > 0) || math.IsInf(sizeKm, 0) {
		return AOI{}, Degenerate("aoi", "size_km must be positive, got %v", sizeKm)
	}

	halfLat := sizeKm / 2 / kmPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-6 {
		return AOI{}, Degenerate("aoi", "latitude %v too close to a pole", lat)
	}
	halfLon := sizeKm / 2 / (kmPerDegreeLon * cosLat)

	return NewRectAOI(lon-halfLon, lat-halfLat, lon+halfLon, lat+halfLat)
}

// NewRectAOI builds a rectangle from its south-west and north-east corners.
func NewRectAOI(lonMin, latMin, lonMax, latMax float64) (AOI, error) {
	if err := checkLonLat(lonMin, latMin); err != nil {
		return AOI{}, err
	}
	if err := checkLonLat(lonMax, latMax); err != nil {
		return AOI{}, err
	}
	if !(lonMax > lonMin) {
		return AOI{}, Degenerate("aoi", "width must be positive (lon_min=%v, lon_max=%v)", lonMin, lonMax)
	}
	if !(latMax > latMin) {
		return AOI{}, Degenerate("aoi", "height must be positive (lat_min=%v, lat_max=%v)", latMin, latMax)
	}
	return AOI{bound: orb.Bound{Min: orb.Point{lonMin, latMin}, Max: orb.Point{lonMax, latMax}}}, nil
}

func checkLonLat(lon, lat float64) error {
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return Degenerate("aoi", "longitude %v out of range", lon)
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return Degenerate("aoi", "latitude %v out of range", lat)
	}
	return nil
}

// Bound returns the rectangle extent.
func (a AOI) Bound() orb.Bound { return a.bound }

// Polygon returns the closed ring of the rectangle.
func (a AOI) Polygon() orb.Polygon { return a.bound.ToPolygon() }

// AreaSquareMeters is the geodesic area of the rectangle.
func (a AOI) AreaSquareMeters() float64 {
	return math.Abs(geo.Area(a.Polygon()))
}

// IsZero reports whether the AOI was never constructed.
func (a AOI) IsZero() bool { return a.bound.IsZero() }
