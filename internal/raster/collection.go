package raster

import (
	"time"

	"github.com/paulmach/orb"
)

// Collection is an immutable handle on a lazily filtered set of scenes.
type Collection struct {
	node *Node
}

// CollectionFromNode wraps an existing graph node.
func CollectionFromNode(n *Node) Collection { return Collection{node: n} }

// Node exposes the root of the expression graph for backends.
func (c Collection) Node() *Node { return c.node }

// Fingerprint is a stable hash of the collection expression.
func (c Collection) Fingerprint() string { return c.node.Fingerprint() }

// Load references a named scene collection.
func Load(name string) Collection {
	n := newNode(OpCollection)
	n.Name = name
	return Collection{node: n}
}

// Filter keeps scenes matching f.
func (c Collection) Filter(f Filter) Collection {
	n := newNode(OpFilter, c.node)
	n.Filter = &f
	return Collection{node: n}
}

// FilterDate keeps scenes acquired in [start, end).
func (c Collection) FilterDate(start, end time.Time) Collection {
	n := newNode(OpFilterDate, c.node)
	n.Start = start
	n.End = end
	return Collection{node: n}
}

// FilterBounds keeps scenes whose footprint intersects region.
func (c Collection) FilterBounds(region orb.Polygon) Collection {
	n := newNode(OpFilterBounds, c.node)
	n.Region = region
	return Collection{node: n}
}

// Select keeps the named bands of every scene.
func (c Collection) Select(bands ...string) Collection {
	n := newNode(OpSelectBands, c.node)
	n.Bands = bands
	return Collection{node: n}
}

// Map applies fn to every scene. fn is traced once against a placeholder
// image, so the resulting graph stays declarative.
func (c Collection) Map(fn func(Image) Image) Collection {
	template := fn(Image{node: newNode(OpVar)})
	return Collection{node: newNode(OpMap, c.node, template.node)}
}

// Median composites the collection by the per-pixel median of valid values.
func (c Collection) Median() Image {
	return Image{node: newNode(OpMedian, c.node)}
}

// Sum composites the collection by the per-pixel sum of valid values.
func (c Collection) Sum() Image {
	return Image{node: newNode(OpSum, c.node)}
}
