// Package memory is a deterministic in-process raster engine. It evaluates
// expression graphs over small synthetic or file-loaded grids and backs the
// test suite and offline runs of the pipeline.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Backend operation names used by Calls and FailOn.
const (
	CallSize   = "size"
	CallReduce = "reduce"
	CallTiles  = "tiles"
	CallPing   = "ping"
)

// Band is one named grid of an image or scene.
type Band struct {
	Name string
	Grid *Grid
}

// Scene is one acquisition in a collection.
type Scene struct {
	ID         string
	Time       time.Time
	Properties map[string]any
	Footprint  orb.Bound // defaults to the whole grid
	Bands      []Band
}

// Backend implements raster.Backend over in-memory grids.
type Backend struct {
	spec GridSpec

	mu           sync.Mutex
	images       map[string][]Band
	collections  map[string][]Scene
	materialized map[string]*Grid
	calls        map[string]int
	failures     map[string]error
}

// NewBackend creates an empty engine whose grids all share spec.
func NewBackend(spec GridSpec) *Backend {
	return &Backend{
		spec:         spec,
		images:       make(map[string][]Band),
		collections:  make(map[string][]Scene),
		materialized: make(map[string]*Grid),
		calls:        make(map[string]int),
		failures:     make(map[string]error),
	}
}

// Spec returns the shared grid layout.
func (b *Backend) Spec() GridSpec { return b.spec }

// AddImage registers a single-band image whose band is named "b1".
func (b *Backend) AddImage(name string, grid *Grid) {
	b.AddImageBands(name, Band{Name: "b1", Grid: grid})
}

// AddImageBands registers a named multi-band image.
func (b *Backend) AddImageBands(name string, bands ...Band) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.images[name] = slices.Clone(bands)
}

// AddScene appends a scene to the named collection, creating it if needed.
func (b *Backend) AddScene(collection string, s Scene) {
	if s.Footprint.IsZero() {
		s.Footprint = b.spec.Bound()
	}
	s.Bands = slices.Clone(s.Bands)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[collection] = append(b.collections[collection], s)
}

// DeclareCollection registers an empty collection so lookups succeed.
func (b *Backend) DeclareCollection(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; !ok {
		b.collections[name] = nil
	}
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (b *Backend) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Calls reports how many times op has been invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Materialized returns the grid behind a tile URL fingerprint.
func (b *Backend) Materialized(fingerprint string) (*Grid, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.materialized[fingerprint]
	return g, ok
}

func (b *Backend) begin(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	return b.failures[op]
}

// Size counts the scenes left after all filters.
func (b *Backend) Size(ctx context.Context, c raster.Collection) (int, error) {
	if err := b.begin(ctx, CallSize); err != nil {
		return 0, err
	}
	coll, err := b.newEvaluator(ctx).collection(c.Node())
	if err != nil {
		return 0, err
	}
	return len(coll.scenes), nil
}

// ReduceRegion reduces the first band of img over the request region at
// the native grid resolution. The scale only has to be positive.
func (b *Backend) ReduceRegion(ctx context.Context, img raster.Image, req raster.ReduceRequest) (raster.Stats, error) {
	if err := b.begin(ctx, CallReduce); err != nil {
		return nil, err
	}
	if !(req.Scale > 0) {
		return nil, fmt.Errorf("reduce scale must be positive, got %v", req.Scale)
	}
	g, err := b.Evaluate(ctx, img)
	if err != nil {
		return nil, err
	}
	return reduce(g, req)
}

// TileURL materialises img and returns a memory:// XYZ template keyed by
// the graph fingerprint.
func (b *Backend) TileURL(ctx context.Context, img raster.Image, viz raster.Visualization) (string, error) {
	if err := b.begin(ctx, CallTiles); err != nil {
		return "", err
	}
	if len(viz.Palette) == 0 {
		return "", errors.New("visualization palette is empty")
	}
	g, err := b.Evaluate(ctx, img)
	if err != nil {
		return "", err
	}
	fp := img.Fingerprint()
	b.mu.Lock()
	b.materialized[fp] = g
	b.mu.Unlock()
	return "memory://tiles/" + fp + "/{z}/{x}/{y}", nil
}

// Ping always succeeds unless a failure was injected.
func (b *Backend) Ping(ctx context.Context) error {
	return b.begin(ctx, CallPing)
}

// Evaluate computes img and returns its first band. It is not counted as a
// backend call.
func (b *Backend) Evaluate(ctx context.Context, img raster.Image) (*Grid, error) {
	if img.IsZero() {
		return nil, errors.New("evaluate: empty image")
	}
	bands, err := b.newEvaluator(ctx).image(img.Node())
	if err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return nil, errors.New("evaluate: image has no bands")
	}
	return bands[0].Grid, nil
}

// EvaluateBands computes every band of img.
func (b *Backend) EvaluateBands(ctx context.Context, img raster.Image) ([]Band, error) {
	if img.IsZero() {
		return nil, errors.New("evaluate: empty image")
	}
	return b.newEvaluator(ctx).image(img.Node())
}

func (b *Backend) lookupImage(name string) ([]Band, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bands, ok := b.images[name]
	return bands, ok
}

func (b *Backend) lookupCollection(name string) ([]Scene, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	scenes, ok := b.collections[name]
	return slices.Clone(scenes), ok
}
