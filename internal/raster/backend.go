package raster

import (
	"context"

	"github.com/paulmach/orb"
)

// Reducer selects the statistics a region reduction computes.
type Reducer string

const (
	ReducerSum        Reducer = "sum"
	ReducerMeanStdDev Reducer = "meanStdDev"
)

// Statistic names reported in Stats.
const (
	StatSum    = "sum"
	StatMean   = "mean"
	StatStdDev = "stdDev"
)

// ReduceRequest describes a region reduction.
type ReduceRequest struct {
	Reducer    Reducer     `json:"reducer"`
	Region     orb.Polygon `json:"region"`
	Scale      float64     `json:"scale"`
	MaxPixels  float64     `json:"max_pixels,omitempty"`
	BestEffort bool        `json:"best_effort,omitempty"`
}

// Stats maps statistic names to values. A missing name means the statistic
// is undefined because no valid pixel fell inside the region.
type Stats map[string]float64

// Get returns the named statistic and whether it is defined.
func (s Stats) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Visualization styles a tile layer.
type Visualization struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette"`
}

// Backend evaluates expression graphs. Each method is a blocking scalar
// extraction point; everything else stays lazy.
type Backend interface {
	// Size returns the number of scenes in the collection.
	Size(ctx context.Context, c Collection) (int, error)

	// ReduceRegion reduces the first band of img over the request region.
	ReduceRegion(ctx context.Context, img Image, req ReduceRequest) (Stats, error)

	// TileURL materialises img as a tile service and returns its XYZ URL
	// template.
	TileURL(ctx context.Context, img Image, viz Visualization) (string, error)
}

// Pinger is implemented by backends that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}
