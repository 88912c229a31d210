// Package raster models lazily evaluated rasters as an immutable expression
// graph. Nothing in this package touches pixels: a graph is built from
// collection lookups and per-pixel algebra, then handed to a Backend which
// evaluates it only at scalar extraction points (collection sizes, region
// reductions, tile materialisation).
package raster

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

// Op names a node in the expression graph. The string values are part of the
// wire format understood by the hosted engine.
type Op string

// Collection operations.
const (
	OpCollection   Op = "collection"
	OpFilter       Op = "collection.filter"
	OpFilterDate   Op = "collection.filterDate"
	OpFilterBounds Op = "collection.filterBounds"
	OpSelectBands  Op = "collection.select"
	OpMap          Op = "collection.map"
	OpMedian       Op = "collection.median"
	OpSum          Op = "collection.sum"
)

// Image operations.
const (
	OpImage                Op = "image"
	OpVar                  Op = "image.var"
	OpConstant             Op = "image.constant"
	OpPixelArea            Op = "image.pixelArea"
	OpSelect               Op = "image.select"
	OpRename               Op = "image.rename"
	OpClip                 Op = "image.clip"
	OpFocalMean            Op = "image.focalMean"
	OpAdd                  Op = "image.add"
	OpSubtract             Op = "image.subtract"
	OpMultiply             Op = "image.multiply"
	OpDivide               Op = "image.divide"
	OpMax                  Op = "image.max"
	OpGt                   Op = "image.gt"
	OpGte                  Op = "image.gte"
	OpLt                   Op = "image.lt"
	OpLte                  Op = "image.lte"
	OpEq                   Op = "image.eq"
	OpAnd                  Op = "image.and"
	OpOr                   Op = "image.or"
	OpNot                  Op = "image.not"
	OpBitwiseAnd           Op = "image.bitwiseAnd"
	OpUpdateMask           Op = "image.updateMask"
	OpSelfMask             Op = "image.selfMask"
	OpBlend                Op = "image.blend"
	OpNormalizedDifference Op = "image.normalizedDifference"
	OpSlope                Op = "image.slope"
	OpPaint                Op = "image.paint"
)

// Kernel shapes for focal operations.
const (
	KernelCircle = "circle"
	KernelSquare = "square"
)

// Units for focal radii.
const (
	UnitsMeters = "meters"
	UnitsPixels = "pixels"
)

// Node is one vertex of the expression graph. Nodes are never mutated after
// construction, so subgraphs can be shared freely between handles.
type Node struct {
	Op     Op      `json:"op"`
	Inputs []*Node `json:"inputs,omitempty"`

	Name   string    `json:"name,omitempty"`
	Bands  []string  `json:"bands,omitempty"`
	Value  float64   `json:"value,omitempty"`
	Filter *Filter   `json:"filter,omitempty"`
	Start  time.Time `json:"start,omitzero"`
	End    time.Time `json:"end,omitzero"`

	Region   orb.Polygon      `json:"region,omitempty"`
	Polygons orb.MultiPolygon `json:"polygons,omitempty"`

	Radius float64 `json:"radius,omitempty"`
	Kernel string  `json:"kernel,omitempty"`
	Units  string  `json:"units,omitempty"`
}

// Fingerprint returns a stable content hash of the graph rooted at n.
// Structurally identical graphs yield identical fingerprints.
func (n *Node) Fingerprint() string {
	data, err := json.Marshal(n)
	if err != nil {
		// Node only holds JSON-safe fields; a failure here means NaN/Inf
		// constants, which still deserve a distinct key.
		data = []byte(string(n.Op) + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func newNode(op Op, inputs ...*Node) *Node {
	return &Node{Op: op, Inputs: inputs}
}
