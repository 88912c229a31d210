package memory

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

type sceneImage struct {
	scene *Scene
	bands []Band
}

type collection struct {
	scenes []sceneImage
	// selected band names, if a select has been applied
	selected []string
}

// evaluator walks one graph. Results are memoised per node, so shared
// subgraphs are computed once per extraction.
type evaluator struct {
	ctx    context.Context
	b      *Backend
	images map[*raster.Node][]Band
	colls  map[*raster.Node]collection
	bound  []Band // value of raster.OpVar inside a map template
}

func (b *Backend) newEvaluator(ctx context.Context) *evaluator {
	return &evaluator{
		ctx:    ctx,
		b:      b,
		images: make(map[*raster.Node][]Band),
		colls:  make(map[*raster.Node]collection),
	}
}

func (e *evaluator) input(n *raster.Node, i int) (*raster.Node, error) {
	if i >= len(n.Inputs) || n.Inputs[i] == nil {
		return nil, fmt.Errorf("%s: missing input %d", n.Op, i)
	}
	return n.Inputs[i], nil
}

func (e *evaluator) collection(n *raster.Node) (collection, error) {
	if n == nil {
		return collection{}, fmt.Errorf("nil collection node")
	}
	if c, ok := e.colls[n]; ok {
		return c, nil
	}
	if err := e.ctx.Err(); err != nil {
		return collection{}, err
	}
	c, err := e.evalCollection(n)
	if err != nil {
		return collection{}, err
	}
	e.colls[n] = c
	return c, nil
}

func (e *evaluator) evalCollection(n *raster.Node) (collection, error) {
	if n.Op == raster.OpCollection {
		scenes, ok := e.b.lookupCollection(n.Name)
		if !ok {
			return collection{}, fmt.Errorf("unknown collection %q", n.Name)
		}
		c := collection{scenes: make([]sceneImage, len(scenes))}
		for i := range scenes {
			c.scenes[i] = sceneImage{scene: &scenes[i], bands: scenes[i].Bands}
		}
		return c, nil
	}

	src, err := e.input(n, 0)
	if err != nil {
		return collection{}, err
	}
	in, err := e.collection(src)
	if err != nil {
		return collection{}, err
	}

	switch n.Op {
	case raster.OpFilter:
		if n.Filter == nil {
			return collection{}, fmt.Errorf("%s: missing filter", n.Op)
		}
		return in.keep(func(s sceneImage) bool { return matchFilter(*n.Filter, s.scene.Properties) }), nil

	case raster.OpFilterDate:
		return in.keep(func(s sceneImage) bool {
			return !s.scene.Time.Before(n.Start) && s.scene.Time.Before(n.End)
		}), nil

	case raster.OpFilterBounds:
		region := n.Region.Bound()
		return in.keep(func(s sceneImage) bool { return s.scene.Footprint.Intersects(region) }), nil

	case raster.OpSelectBands:
		out := collection{scenes: make([]sceneImage, len(in.scenes)), selected: n.Bands}
		for i, s := range in.scenes {
			bands, err := selectBands(s.bands, n.Bands)
			if err != nil {
				return collection{}, fmt.Errorf("scene %s: %w", s.scene.ID, err)
			}
			out.scenes[i] = sceneImage{scene: s.scene, bands: bands}
		}
		return out, nil

	case raster.OpMap:
		tmpl, err := e.input(n, 1)
		if err != nil {
			return collection{}, err
		}
		out := collection{scenes: make([]sceneImage, len(in.scenes))}
		for i, s := range in.scenes {
			child := e.b.newEvaluator(e.ctx)
			child.bound = s.bands
			bands, err := child.image(tmpl)
			if err != nil {
				return collection{}, fmt.Errorf("map over scene %s: %w", s.scene.ID, err)
			}
			out.scenes[i] = sceneImage{scene: s.scene, bands: bands}
		}
		if len(out.scenes) > 0 {
			out.selected = bandNames(out.scenes[0].bands)
		} else {
			out.selected = in.selected
		}
		return out, nil
	}
	return collection{}, fmt.Errorf("unsupported collection op %q", n.Op)
}

func (c collection) keep(pred func(sceneImage) bool) collection {
	out := collection{selected: c.selected}
	for _, s := range c.scenes {
		if pred(s) {
			out.scenes = append(out.scenes, s)
		}
	}
	return out
}

func (e *evaluator) image(n *raster.Node) ([]Band, error) {
	if n == nil {
		return nil, fmt.Errorf("nil image node")
	}
	if bands, ok := e.images[n]; ok {
		return bands, nil
	}
	if err := e.ctx.Err(); err != nil {
		return nil, err
	}
	bands, err := e.evalImage(n)
	if err != nil {
		return nil, err
	}
	e.images[n] = bands
	return bands, nil
}

func (e *evaluator) evalImage(n *raster.Node) ([]Band, error) {
	spec := e.b.spec

	switch n.Op {
	case raster.OpImage:
		bands, ok := e.b.lookupImage(n.Name)
		if !ok {
			return nil, fmt.Errorf("unknown image %q", n.Name)
		}
		return bands, nil
	case raster.OpVar:
		if e.bound == nil {
			return nil, fmt.Errorf("image variable used outside a map")
		}
		return e.bound, nil
	case raster.OpConstant:
		return []Band{{Name: "constant", Grid: NewConstantGrid(spec, n.Value)}}, nil
	case raster.OpPixelArea:
		return []Band{{Name: "area", Grid: pixelArea(spec)}}, nil
	case raster.OpMedian, raster.OpSum:
		src, err := e.input(n, 0)
		if err != nil {
			return nil, err
		}
		c, err := e.collection(src)
		if err != nil {
			return nil, err
		}
		if n.Op == raster.OpMedian {
			return composite(spec, c, median), nil
		}
		return composite(spec, c, sum), nil
	}

	src, err := e.input(n, 0)
	if err != nil {
		return nil, err
	}
	in, err := e.image(src)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case raster.OpSelect:
		return selectBands(in, n.Bands)
	case raster.OpRename:
		if len(n.Bands) > len(in) {
			return nil, fmt.Errorf("rename: %d names for %d bands", len(n.Bands), len(in))
		}
		out := slices.Clone(in)
		for i, name := range n.Bands {
			out[i].Name = name
		}
		return out, nil
	case raster.OpClip:
		return mapBands(in, func(g *Grid) *Grid { return clip(g, n.Region) }), nil
	case raster.OpFocalMean:
		var ferr error
		out := mapBands(in, func(g *Grid) *Grid {
			r, err := focalMean(g, n.Radius, n.Kernel, n.Units)
			if err != nil {
				ferr = err
			}
			return r
		})
		return out, ferr
	case raster.OpNot:
		return mapBands(in, func(g *Grid) *Grid {
			return unary(g, func(v float64) float64 { return boolf(v == 0) })
		}), nil
	case raster.OpSelfMask:
		return mapBands(in, selfMask), nil
	case raster.OpSlope:
		if len(in) == 0 {
			return nil, fmt.Errorf("slope: image has no bands")
		}
		return []Band{{Name: "slope", Grid: slope(in[0].Grid)}}, nil
	case raster.OpPaint:
		return mapBands(in, func(g *Grid) *Grid { return paint(g, n.Polygons, n.Value) }), nil
	case raster.OpNormalizedDifference:
		if len(n.Bands) != 2 {
			return nil, fmt.Errorf("normalizedDifference needs two bands, got %d", len(n.Bands))
		}
		pair, err := selectBands(in, n.Bands)
		if err != nil {
			return nil, err
		}
		g := combine(pair[0].Grid, pair[1].Grid, func(a, b float64) (float64, bool) {
			return (a - b) / (a + b), a+b != 0
		})
		return []Band{{Name: "nd", Grid: g}}, nil
	}

	other, err := e.input(n, 1)
	if err != nil {
		return nil, err
	}
	rhs, err := e.image(other)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case raster.OpUpdateMask:
		return pairwise(in, rhs, updateMask, false)
	case raster.OpBlend:
		return pairwise(in, rhs, blend, false)
	}

	fn, ok := binaryOps[n.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported image op %q", n.Op)
	}
	return pairwise(in, rhs, func(a, b *Grid) *Grid { return combine(a, b, fn) }, isConstant(src))
}

var binaryOps = map[raster.Op]func(a, b float64) (float64, bool){
	raster.OpAdd:      func(a, b float64) (float64, bool) { return a + b, true },
	raster.OpSubtract: func(a, b float64) (float64, bool) { return a - b, true },
	raster.OpMultiply: func(a, b float64) (float64, bool) { return a * b, true },
	raster.OpDivide:   func(a, b float64) (float64, bool) { return a / b, b != 0 },
	raster.OpMax:      func(a, b float64) (float64, bool) { return math.Max(a, b), true },
	raster.OpGt:       func(a, b float64) (float64, bool) { return boolf(a > b), true },
	raster.OpGte:      func(a, b float64) (float64, bool) { return boolf(a >= b), true },
	raster.OpLt:       func(a, b float64) (float64, bool) { return boolf(a < b), true },
	raster.OpLte:      func(a, b float64) (float64, bool) { return boolf(a <= b), true },
	raster.OpEq:       func(a, b float64) (float64, bool) { return boolf(a == b), true },
	raster.OpAnd:      func(a, b float64) (float64, bool) { return boolf(a != 0 && b != 0), true },
	raster.OpOr:       func(a, b float64) (float64, bool) { return boolf(a != 0 || b != 0), true },
	raster.OpBitwiseAnd: func(a, b float64) (float64, bool) {
		return float64(int64(a) & int64(b)), true
	},
}

func isConstant(n *raster.Node) bool { return n.Op == raster.OpConstant }

// pairwise combines two images band by band. A single-band operand is
// broadcast over the other. Output band names come from the left operand
// unless it is a constant.
func pairwise(a, b []Band, fn func(a, b *Grid) *Grid, leftConstant bool) ([]Band, error) {
	switch {
	case len(a) == 0 || len(b) == 0:
		return nil, fmt.Errorf("operand has no bands")
	case len(a) == len(b):
	case len(a) == 1 || len(b) == 1:
	default:
		return nil, fmt.Errorf("band count mismatch: %d vs %d", len(a), len(b))
	}
	n := max(len(a), len(b))
	out := make([]Band, n)
	for i := range n {
		l, r := a[min(i, len(a)-1)], b[min(i, len(b)-1)]
		name := l.Name
		if leftConstant || len(a) < len(b) {
			name = r.Name
		}
		out[i] = Band{Name: name, Grid: fn(l.Grid, r.Grid)}
	}
	return out, nil
}

// anyBand names the single band of a composite over an empty collection
// whose band names were never known. Selecting any name from it yields
// that band, fully masked.
const anyBand = "*"

func selectBands(in []Band, names []string) ([]Band, error) {
	out := make([]Band, 0, len(names))
	for _, name := range names {
		idx := slices.IndexFunc(in, func(b Band) bool { return b.Name == name })
		if idx < 0 && len(in) == 1 && in[0].Name == anyBand {
			out = append(out, Band{Name: name, Grid: newEmptyGrid(in[0].Grid.spec)})
			continue
		}
		if idx < 0 {
			return nil, fmt.Errorf("band %q not found in %v", name, bandNames(in))
		}
		out = append(out, in[idx])
	}
	return out, nil
}

func bandNames(bands []Band) []string {
	names := make([]string, len(bands))
	for i, b := range bands {
		names[i] = b.Name
	}
	return names
}

func mapBands(in []Band, fn func(*Grid) *Grid) []Band {
	out := make([]Band, len(in))
	for i, b := range in {
		out[i] = Band{Name: b.Name, Grid: fn(b.Grid)}
	}
	return out
}

func boolf(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
