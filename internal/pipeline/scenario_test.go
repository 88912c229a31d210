package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-detection-service/internal/adapter/memory"
	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/observability"
	"github.com/couchcryptid/flood-detection-service/internal/pipeline"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// The scenario grid lays 20x20 pixels of roughly 1 km over a 20 km AOI.
const gridSize = 20

func ptr(v float64) *float64 { return &v }

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 6, 0, 0, 0, time.UTC)
}

type scenario struct {
	t        *testing.T
	analysis domain.Analysis
	spec     memory.GridSpec
	backend  *memory.Backend
	cols     pipeline.Collections
}

// newScenario builds the 2024-10-29 Valencia analysis with no data loaded.
func newScenario(t *testing.T) *scenario {
	t.Helper()
	a, err := domain.ParseRequest(domain.AnalysisRequest{
		EventDate:    "2024-10-29",
		DaysBefore:   30,
		DaysAfter:    10,
		Polarization: "VH",
		Orbit:        "DESCENDING",
		AOI:          domain.AOIRequest{Lon: ptr(-0.4), Lat: ptr(39.35), SizeKm: ptr(20)},
	})
	require.NoError(t, err)

	spec := memory.SpecForBound(a.AOI.Bound(), gridSize, gridSize)
	require.NoError(t, spec.Validate())
	s := &scenario{t: t, analysis: a, spec: spec, backend: memory.NewBackend(spec), cols: pipeline.DefaultCollections()}
	for _, name := range []string{s.cols.Radar, s.cols.Optical, s.cols.Precipitation} {
		s.backend.DeclareCollection(name)
	}
	return s
}

// flooded loads data where after/before = 1.4 everywhere, nothing is
// built up, 50 mm fell on the event day, terrain is flat and historical
// water occurrence is a uniform 10 %.
func flooded(t *testing.T) *scenario {
	s := newScenario(t)
	s.addRadar("s1-before", day(time.October, 15), "DESCENDING", -10)
	s.addRadar("s1-after", day(time.November, 1), "DESCENDING", -14)
	// Ascending passes must be filtered out; including this one would break
	// the ratio.
	s.addRadar("s1-after-asc", day(time.November, 2), "ASCENDING", -5)
	s.addOptical(1000, 3000, 0)
	s.addPrecipitation(time.Date(2024, time.October, 29, 12, 0, 0, 0, time.UTC), 50)
	s.setOccurrence(func(int) float64 { return 10 })
	s.setElevation(func(int) float64 { return 20 })
	return s
}

func (s *scenario) constant(v float64) *memory.Grid {
	return memory.NewConstantGrid(s.spec, v)
}

func (s *scenario) grid(fn func(i int) float64) *memory.Grid {
	values := make([]float64, s.spec.Len())
	for i := range values {
		values[i] = fn(i)
	}
	return memory.NewGrid(s.spec, values)
}

func (s *scenario) addRadar(id string, at time.Time, pass string, db float64) {
	s.backend.AddScene(s.cols.Radar, memory.Scene{
		ID:   id,
		Time: at,
		Properties: map[string]any{
			"instrumentMode":                  "IW",
			"transmitterReceiverPolarisation": []any{"VV", "VH"},
			"orbitProperties_pass":            pass,
			"resolution_meters":               10.0,
		},
		Bands: []memory.Band{
			{Name: "VH", Grid: s.constant(db)},
			{Name: "VV", Grid: s.constant(db + 6)},
		},
	})
}

func (s *scenario) addOptical(b11, b8, qa float64) {
	s.backend.AddScene(s.cols.Optical, memory.Scene{
		ID:         "s2",
		Time:       time.Date(2023, time.June, 1, 10, 0, 0, 0, time.UTC),
		Properties: map[string]any{"CLOUDY_PIXEL_PERCENTAGE": 5.0},
		Bands: []memory.Band{
			{Name: "B11", Grid: s.constant(b11)},
			{Name: "B8", Grid: s.constant(b8)},
			{Name: "QA60", Grid: s.constant(qa)},
		},
	})
}

func (s *scenario) addPrecipitation(at time.Time, mm float64) {
	s.backend.AddScene(s.cols.Precipitation, memory.Scene{
		ID:    at.Format(time.RFC3339),
		Time:  at,
		Bands: []memory.Band{{Name: "precipitation", Grid: s.constant(mm)}},
	})
}

func (s *scenario) setOccurrence(fn func(i int) float64) {
	s.backend.AddImageBands(s.cols.Water, memory.Band{Name: "occurrence", Grid: s.grid(fn)})
}

func (s *scenario) setElevation(fn func(i int) float64) {
	s.backend.AddImageBands(s.cols.Elevation, memory.Band{Name: "elevation", Grid: s.grid(fn)})
}

// inNorthWest reports whether pixel i lies in the north-west quarter.
func (s *scenario) inNorthWest(i int) bool {
	return i%s.spec.Cols < s.spec.Cols/2 && i/s.spec.Cols < s.spec.Rows/2
}

func (s *scenario) northWestQuarter() orb.MultiPolygon {
	b := s.spec.Bound()
	c := b.Center()
	return orb.MultiPolygon{orb.Bound{Min: orb.Point{b.Min.Lon(), c.Lat()}, Max: orb.Point{c.Lon(), b.Max.Lat()}}.ToPolygon()}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, backend raster.Backend, settings pipeline.Settings, metrics *observability.Metrics, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	p, err := pipeline.New(backend, settings, discardLogger(), metrics, opts...)
	require.NoError(t, err)
	return p
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []domain.Result
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, res domain.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// cancelAfterArea cancels the run as soon as the area reduction returns,
// simulating a user cancel between the last two stages.
type cancelAfterArea struct {
	*memory.Backend
	cancel context.CancelFunc
}

func (b cancelAfterArea) ReduceRegion(ctx context.Context, img raster.Image, req raster.ReduceRequest) (raster.Stats, error) {
	stats, err := b.Backend.ReduceRegion(ctx, img, req)
	if req.Reducer == raster.ReducerSum {
		b.cancel()
	}
	return stats, err
}
