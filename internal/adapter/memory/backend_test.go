package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

var testSpec = GridSpec{West: 0, North: 0.3, PixelWidth: 0.1, PixelHeight: 0.1, Cols: 3, Rows: 3}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	require.NoError(t, testSpec.Validate())
	return NewBackend(testSpec)
}

func gridOf(values ...float64) *Grid {
	return NewGrid(testSpec, values)
}

func eval(t *testing.T, b *Backend, img raster.Image) *Grid {
	t.Helper()
	g, err := b.Evaluate(context.Background(), img)
	require.NoError(t, err)
	return g
}

func assertGrid(t *testing.T, g *Grid, want []float64) {
	t.Helper()
	require.Equal(t, len(want), g.Len())
	for i, w := range want {
		if math.IsNaN(w) {
			assert.False(t, g.Valid(i), "pixel %d should be masked", i)
			continue
		}
		if assert.True(t, g.Valid(i), "pixel %d should be valid", i) {
			assert.InDelta(t, w, g.Value(i), 1e-9, "pixel %d", i)
		}
	}
}

var nan = math.NaN()

func TestBinaryOps_IntersectValidity(t *testing.T) {
	b := newTestBackend(t)
	a := gridOf(1, 2, 3, 4, 5, 6, 7, 8, 9)
	a.Invalidate(0)
	c := gridOf(1, 1, 1, 1, 0, 1, 1, 1, 1)
	c.Invalidate(8)
	b.AddImage("a", a)
	b.AddImage("c", c)

	sum := eval(t, b, raster.LoadImage("a").Add(raster.LoadImage("c")))
	assertGrid(t, sum, []float64{nan, 3, 4, 5, 5, 7, 8, 9, nan})

	quot := eval(t, b, raster.LoadImage("a").Divide(raster.LoadImage("c")))
	assertGrid(t, quot, []float64{nan, 2, 3, 4, nan, 6, 7, 8, nan})
}

func TestMasks(t *testing.T) {
	b := newTestBackend(t)
	b.AddImage("v", gridOf(5, 0, 3, 0, 2, 0, 1, 0, 4))
	b.AddImage("m", gridOf(1, 1, 0, 1, 1, 0, 1, 1, 1))

	v := raster.LoadImage("v")
	assertGrid(t, eval(t, b, v.SelfMask()), []float64{5, nan, 3, nan, 2, nan, 1, nan, 4})
	assertGrid(t, eval(t, b, v.UpdateMask(raster.LoadImage("m"))), []float64{5, 0, nan, 0, 2, nan, 1, 0, 4})

	top := v.SelfMask().Multiply(raster.Constant(10))
	assertGrid(t, eval(t, b, v.Blend(top)), []float64{50, 0, 30, 0, 20, 0, 10, 0, 40})
}

func TestUpdateMask_NeverWidens(t *testing.T) {
	b := newTestBackend(t)
	b.AddImage("v", gridOf(1, 2, 3, 4, 5, 6, 7, 8, 9))
	img := raster.LoadImage("v").SelfMask()
	before := eval(t, b, img).ValidCount()

	masked := img.UpdateMask(raster.LoadImage("v").Gt(raster.Constant(4)))
	assert.LessOrEqual(t, eval(t, b, masked).ValidCount(), before)
}

func TestClip(t *testing.T) {
	b := newTestBackend(t)
	b.AddImage("v", gridOf(1, 2, 3, 4, 5, 6, 7, 8, 9))

	// Only the left column's centres (lon 0.05) fall inside.
	region := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.1, 0.3}}.ToPolygon()
	assertGrid(t, eval(t, b, raster.LoadImage("v").Clip(region)), []float64{1, nan, nan, 4, nan, nan, 7, nan, nan})
}

func TestFocalMean_SquarePixels(t *testing.T) {
	b := newTestBackend(t)
	g := gridOf(1, 2, 3, 4, 5, 6, 7, 8, 9)
	g.Invalidate(4)
	b.AddImage("v", g)

	out := eval(t, b, raster.LoadImage("v").FocalMean(1, raster.KernelSquare, raster.UnitsPixels))
	assert.False(t, out.Valid(4), "masked centre stays masked")
	assert.InDelta(t, (1+2+4)/3.0, out.Value(0), 1e-9)
	assert.InDelta(t, (1+2+3+4+6)/5.0, out.Value(1), 1e-9)
}

func TestSlope_FlatIsZero(t *testing.T) {
	b := newTestBackend(t)
	b.AddImageBands("dem", Band{Name: "elevation", Grid: NewConstantGrid(testSpec, 12)})

	out := eval(t, b, raster.LoadImage("dem").Select("elevation").Slope())
	for i := range out.Len() {
		assert.InDelta(t, 0, out.Value(i), 1e-12)
	}
}

func TestNormalizedDifference(t *testing.T) {
	b := newTestBackend(t)
	b.AddImageBands("s2",
		Band{Name: "B11", Grid: gridOf(3, 1, 0, 3, 1, 0, 3, 1, 0)},
		Band{Name: "B8", Grid: gridOf(1, 3, 0, 1, 3, 0, 1, 3, 0)},
	)
	out := eval(t, b, raster.LoadImage("s2").NormalizedDifference("B11", "B8"))
	assertGrid(t, out, []float64{0.5, -0.5, nan, 0.5, -0.5, nan, 0.5, -0.5, nan})

	_, err := b.Evaluate(context.Background(), raster.LoadImage("s2").NormalizedDifference("B11", "B4"))
	assert.Error(t, err)
}

func TestPaint(t *testing.T) {
	b := newTestBackend(t)
	g := gridOf(0, 0, 0, 0, 0, 0, 0, 0, 0)
	g.Invalidate(2)
	b.AddImage("v", g)

	poly := orb.MultiPolygon{orb.Bound{Min: orb.Point{0.2, 0.2}, Max: orb.Point{0.3, 0.3}}.ToPolygon()}
	out := eval(t, b, raster.LoadImage("v").Paint(poly, 1))
	assertGrid(t, out, []float64{0, 0, 1, 0, 0, 0, 0, 0, 0})
}

func addScenes(b *Backend) {
	day := func(d int) time.Time { return time.Date(2024, time.October, d, 6, 0, 0, 0, time.UTC) }
	masked := gridOf(nan, 3, 3, 3, 3, 3, 3, 3, 3)
	for i, s := range []struct {
		t    time.Time
		pass string
		g    *Grid
	}{
		{day(1), "DESCENDING", gridOf(1, 1, 1, 1, 1, 1, 1, 1, 1)},
		{day(2), "DESCENDING", gridOf(2, 2, 2, 2, 2, 2, 2, 2, 2)},
		{day(3), "DESCENDING", masked},
		{day(4), "ASCENDING", gridOf(9, 9, 9, 9, 9, 9, 9, 9, 9)},
	} {
		b.AddScene("s1", Scene{
			ID:         string(rune('a' + i)),
			Time:       s.t,
			Properties: map[string]any{"orbitProperties_pass": s.pass, "pols": []any{"VV", "VH"}, "res": 10.0},
			Bands:      []Band{{Name: "VH", Grid: s.g}},
		})
	}
}

func TestSize_Filters(t *testing.T) {
	b := newTestBackend(t)
	addScenes(b)
	ctx := context.Background()

	c := raster.Load("s1")
	n, err := b.Size(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = b.Size(ctx, c.Filter(raster.Eq("orbitProperties_pass", "DESCENDING")))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	day4 := time.Date(2024, time.October, 4, 6, 0, 0, 0, time.UTC)
	n, err = b.Size(ctx, c.FilterDate(time.Date(2024, time.October, 2, 0, 0, 0, 0, time.UTC), day4))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "end of the date range is exclusive")

	n, err = b.Size(ctx, c.Filter(raster.ListContains("pols", "VH")).Filter(raster.Eq("res", 10)))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = b.Size(ctx, c.Filter(raster.ListContains("pols", "HH")))
	require.NoError(t, err)
	assert.Zero(t, n)

	far := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{11, 11}}.ToPolygon()
	n, err = b.Size(ctx, c.FilterBounds(far))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = b.Size(ctx, raster.Load("missing"))
	assert.Error(t, err)
	assert.Equal(t, 7, b.Calls(CallSize))
}

func TestMedian_IgnoresMaskedValues(t *testing.T) {
	b := newTestBackend(t)
	addScenes(b)

	desc := raster.Load("s1").Filter(raster.Eq("orbitProperties_pass", "DESCENDING")).Select("VH")
	out := eval(t, b, desc.Median())
	assert.InDelta(t, 1.5, out.Value(0), 1e-12, "masked scene value skipped")
	assert.InDelta(t, 2, out.Value(1), 1e-12)

	total := eval(t, b, desc.Sum())
	assert.InDelta(t, 3, total.Value(0), 1e-12)
	assert.InDelta(t, 6, total.Value(1), 1e-12)
}

func TestMap_AppliesPerScene(t *testing.T) {
	b := newTestBackend(t)
	addScenes(b)

	doubled := raster.Load("s1").Select("VH").Map(func(img raster.Image) raster.Image {
		return img.Multiply(raster.Constant(2))
	})
	out := eval(t, b, doubled.Filter(raster.Eq("orbitProperties_pass", "ASCENDING")).Median())
	assert.InDelta(t, 18, out.Value(4), 1e-12)
}

func TestMedian_EmptyCollectionIsFullyMasked(t *testing.T) {
	b := newTestBackend(t)
	b.DeclareCollection("empty")

	out := eval(t, b, raster.Load("empty").Select("B8").Median())
	assert.Zero(t, out.ValidCount())
}

func TestMedian_EmptyCollectionWithoutBandNames(t *testing.T) {
	b := newTestBackend(t)
	b.DeclareCollection("empty")

	composite := raster.Load("empty").
		Map(func(img raster.Image) raster.Image { return img.Divide(raster.Constant(10000)) }).
		Median()

	out := eval(t, b, composite.NormalizedDifference("B11", "B8"))
	assert.Zero(t, out.ValidCount())
	out = eval(t, b, composite.Select("B8"))
	assert.Zero(t, out.ValidCount())
}

func TestReduceRegion(t *testing.T) {
	b := newTestBackend(t)
	g := gridOf(1, 2, 3, 4, 5, 6, 7, 8, 9)
	g.Invalidate(8)
	b.AddImage("v", g)
	ctx := context.Background()
	region := testSpec.Bound().ToPolygon()

	stats, err := b.ReduceRegion(ctx, raster.LoadImage("v"), raster.ReduceRequest{Reducer: raster.ReducerSum, Region: region, Scale: 10})
	require.NoError(t, err)
	s, ok := stats.Get(raster.StatSum)
	require.True(t, ok)
	assert.InDelta(t, 36, s, 1e-12)

	stats, err = b.ReduceRegion(ctx, raster.LoadImage("v"), raster.ReduceRequest{Reducer: raster.ReducerMeanStdDev, Region: region, Scale: 30})
	require.NoError(t, err)
	mean, _ := stats.Get(raster.StatMean)
	std, _ := stats.Get(raster.StatStdDev)
	assert.InDelta(t, 4.5, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.25), std, 1e-12)

	_, err = b.ReduceRegion(ctx, raster.LoadImage("v"), raster.ReduceRequest{Reducer: raster.ReducerSum, Region: region, Scale: 10, MaxPixels: 4})
	assert.Error(t, err)
	_, err = b.ReduceRegion(ctx, raster.LoadImage("v"), raster.ReduceRequest{Reducer: raster.ReducerSum, Region: region, Scale: 10, MaxPixels: 4, BestEffort: true})
	assert.NoError(t, err)
}

func TestReduceRegion_UndefinedWhenNothingValid(t *testing.T) {
	b := newTestBackend(t)
	b.AddImage("zero", NewConstantGrid(testSpec, 0))

	stats, err := b.ReduceRegion(context.Background(), raster.LoadImage("zero").SelfMask(), raster.ReduceRequest{
		Reducer: raster.ReducerMeanStdDev, Region: testSpec.Bound().ToPolygon(), Scale: 30,
	})
	require.NoError(t, err)
	_, ok := stats.Get(raster.StatMean)
	assert.False(t, ok)
}

func TestPixelArea_SumsToRegionArea(t *testing.T) {
	b := newTestBackend(t)
	region := testSpec.Bound().ToPolygon()

	stats, err := b.ReduceRegion(context.Background(), raster.PixelArea(), raster.ReduceRequest{
		Reducer: raster.ReducerSum, Region: region, Scale: 10,
	})
	require.NoError(t, err)
	got, _ := stats.Get(raster.StatSum)
	assert.InEpsilon(t, math.Abs(geo.Area(region)), got, 1e-9)
}

func TestTileURL_MaterializesGraph(t *testing.T) {
	b := newTestBackend(t)
	b.AddImage("v", gridOf(0, 1, 0, 1, 0, 1, 0, 1, 0))
	img := raster.LoadImage("v").SelfMask()

	url, err := b.TileURL(context.Background(), img, raster.Visualization{Min: 0, Max: 1, Palette: []string{"ffffff", "0000ff"}})
	require.NoError(t, err)
	assert.Equal(t, "memory://tiles/"+img.Fingerprint()+"/{z}/{x}/{y}", url)

	g, ok := b.Materialized(img.Fingerprint())
	require.True(t, ok)
	assert.Equal(t, 4, g.ValidCount())

	_, err = b.TileURL(context.Background(), img, raster.Visualization{})
	assert.Error(t, err)
	assert.Equal(t, 2, b.Calls(CallTiles))
}

func TestFailOn_InjectsErrors(t *testing.T) {
	b := newTestBackend(t)
	boom := errors.New("boom")
	b.FailOn(CallPing, boom)
	assert.ErrorIs(t, b.Ping(context.Background()), boom)

	b.FailOn(CallPing, nil)
	assert.NoError(t, b.Ping(context.Background()))
}

func TestEvaluate_HonoursCancellation(t *testing.T) {
	b := newTestBackend(t)
	b.AddImage("v", gridOf(1, 2, 3, 4, 5, 6, 7, 8, 9))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Evaluate(ctx, raster.LoadImage("v"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = b.Size(ctx, raster.Load("s1"))
	assert.ErrorIs(t, err, context.Canceled)
}
