package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
)

// ReferenceCatalog looks up externally mapped flood extents by event date
// (YYYY-MM-DD). Analyses of a listed date overlay the extent onto the
// historical-water membership.
type ReferenceCatalog interface {
	Lookup(eventDate string) (orb.MultiPolygon, bool)
}

// StaticCatalog is an in-memory ReferenceCatalog.
type StaticCatalog map[string]orb.MultiPolygon

// Lookup implements ReferenceCatalog.
func (c StaticCatalog) Lookup(eventDate string) (orb.MultiPolygon, bool) {
	mp, ok := c[eventDate]
	return mp, ok && len(mp) > 0
}

// Dates lists the catalogued event dates in order.
func (c StaticCatalog) Dates() []string {
	return slices.Sorted(maps.Keys(c))
}

// LoadCatalogDir reads every YYYY-MM-DD.geojson file in dir. Each file is a
// FeatureCollection; polygon and multipolygon features are merged into
// that date's extent.
func LoadCatalogDir(dir string) (StaticCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read reference floods: %w", err)
	}

	catalog := StaticCatalog{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".geojson") {
			continue
		}
		date := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("reference flood %s: file name must be a YYYY-MM-DD date", name)
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reference flood %s: %w", name, err)
		}
		mp, err := ParseReferenceExtent(data)
		if err != nil {
			return nil, fmt.Errorf("reference flood %s: %w", name, err)
		}
		catalog[date] = mp
	}
	return catalog, nil
}

// ParseReferenceExtent merges the areal features of a GeoJSON
// FeatureCollection.
func ParseReferenceExtent(data []byte) (orb.MultiPolygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var mp orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		case orb.Bound:
			mp = append(mp, g.ToPolygon())
		}
	}
	if len(mp) == 0 {
		return nil, errors.New("no polygon features")
	}
	return mp, nil
}
