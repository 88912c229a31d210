package raster

import "github.com/paulmach/orb"

// Image is an immutable handle on a lazily evaluated raster. The zero value
// is not usable; build images with LoadImage, Constant, PixelArea or from a
// Collection.
type Image struct {
	node *Node
}

// ImageFromNode wraps an existing graph node, typically one decoded from the
// wire by a backend.
func ImageFromNode(n *Node) Image { return Image{node: n} }

// Node exposes the root of the expression graph for backends.
func (i Image) Node() *Node { return i.node }

// IsZero reports whether the handle was never initialised.
func (i Image) IsZero() bool { return i.node == nil }

// Fingerprint is a stable hash of the image expression.
func (i Image) Fingerprint() string { return i.node.Fingerprint() }

// LoadImage references a single named image asset.
func LoadImage(name string) Image {
	n := newNode(OpImage)
	n.Name = name
	return Image{node: n}
}

// Constant is an image with value v everywhere and no masked pixels.
func Constant(v float64) Image {
	n := newNode(OpConstant)
	n.Value = v
	return Image{node: n}
}

// PixelArea is an image whose value is the area of each pixel in square
// meters, accounting for the projection.
func PixelArea() Image {
	return Image{node: newNode(OpPixelArea)}
}

func (i Image) unary(op Op) Image {
	return Image{node: newNode(op, i.node)}
}

func (i Image) binary(op Op, other Image) Image {
	return Image{node: newNode(op, i.node, other.node)}
}

// Select keeps the named bands, in order.
func (i Image) Select(bands ...string) Image {
	n := newNode(OpSelect, i.node)
	n.Bands = bands
	return Image{node: n}
}

// Rename renames the bands of the image positionally.
func (i Image) Rename(names ...string) Image {
	n := newNode(OpRename, i.node)
	n.Bands = names
	return Image{node: n}
}

// Clip masks every pixel outside region.
func (i Image) Clip(region orb.Polygon) Image {
	n := newNode(OpClip, i.node)
	n.Region = region
	return Image{node: n}
}

// FocalMean replaces each valid pixel with the mean of the valid pixels in
// the kernel around it.
func (i Image) FocalMean(radius float64, kernel, units string) Image {
	n := newNode(OpFocalMean, i.node)
	n.Radius = radius
	n.Kernel = kernel
	n.Units = units
	return Image{node: n}
}

func (i Image) Add(o Image) Image        { return i.binary(OpAdd, o) }
func (i Image) Subtract(o Image) Image   { return i.binary(OpSubtract, o) }
func (i Image) Multiply(o Image) Image   { return i.binary(OpMultiply, o) }
func (i Image) Divide(o Image) Image     { return i.binary(OpDivide, o) }
func (i Image) Max(o Image) Image        { return i.binary(OpMax, o) }
func (i Image) Gt(o Image) Image         { return i.binary(OpGt, o) }
func (i Image) Gte(o Image) Image        { return i.binary(OpGte, o) }
func (i Image) Lt(o Image) Image         { return i.binary(OpLt, o) }
func (i Image) Lte(o Image) Image        { return i.binary(OpLte, o) }
func (i Image) Eq(o Image) Image         { return i.binary(OpEq, o) }
func (i Image) And(o Image) Image        { return i.binary(OpAnd, o) }
func (i Image) Or(o Image) Image         { return i.binary(OpOr, o) }
func (i Image) BitwiseAnd(o Image) Image { return i.binary(OpBitwiseAnd, o) }
func (i Image) Not() Image               { return i.unary(OpNot) }

// UpdateMask narrows validity to pixels where mask is valid and non-zero.
// It never widens the existing mask.
func (i Image) UpdateMask(mask Image) Image { return i.binary(OpUpdateMask, mask) }

// SelfMask masks every pixel whose value is zero.
func (i Image) SelfMask() Image { return i.unary(OpSelfMask) }

// Blend overlays top onto the image: wherever top is valid its value wins.
func (i Image) Blend(top Image) Image { return i.binary(OpBlend, top) }

// NormalizedDifference computes (a - b) / (a + b) for the two named bands.
func (i Image) NormalizedDifference(a, b string) Image {
	n := newNode(OpNormalizedDifference, i.node)
	n.Bands = []string{a, b}
	return Image{node: n}
}

// Slope derives terrain slope in degrees from an elevation image.
func (i Image) Slope() Image { return i.unary(OpSlope) }

// Paint burns value into every pixel covered by polygons, leaving the rest
// of the image unchanged.
func (i Image) Paint(polygons orb.MultiPolygon, value float64) Image {
	n := newNode(OpPaint, i.node)
	n.Polygons = polygons
	n.Value = value
	return Image{node: n}
}
