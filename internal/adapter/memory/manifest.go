package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Manifest describes an offline dataset: one grid layout, standalone
// images and collection scenes. File paths are relative to the manifest.
//
//	{
//	  "grid": {"west": -0.62, "north": 39.57, "pixel_width": 0.001, ...},
//	  "collections": ["COPERNICUS/S2_SR_HARMONIZED"],
//	  "images": [{"name": "USGS/SRTMGL1_003", "bands": [{"name": "elevation", "file": "dem.tif"}]}],
//	  "scenes": [{"collection": "COPERNICUS/S1_GRD", "id": "s1a", "time": "2024-10-30T06:00:00Z",
//	              "properties": {"instrumentMode": "IW"}, "bands": [{"name": "VH", "file": "vh.nc", "variable": "VH"}]}]
//	}
type Manifest struct {
	Grid        GridSpec     `json:"grid"`
	Collections []string     `json:"collections,omitempty"`
	Images      []ImageEntry `json:"images,omitempty"`
	Scenes      []SceneEntry `json:"scenes,omitempty"`
}

// ImageEntry is one standalone image.
type ImageEntry struct {
	Name  string       `json:"name"`
	Bands []BandSource `json:"bands"`
}

// SceneEntry is one collection scene. Footprint is lon_min, lat_min,
// lon_max, lat_max and defaults to the whole grid.
type SceneEntry struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Time       time.Time      `json:"time"`
	Properties map[string]any `json:"properties,omitempty"`
	Footprint  *[4]float64    `json:"footprint,omitempty"`
	Bands      []BandSource   `json:"bands"`
}

// BandSource locates the pixels of one band. Exactly one of File, Constant
// or Values is set. Null entries in Values are masked.
type BandSource struct {
	Name     string     `json:"name"`
	File     string     `json:"file,omitempty"`
	Variable string     `json:"variable,omitempty"`
	Constant *float64   `json:"constant,omitempty"`
	Values   []*float64 `json:"values,omitempty"`
	DecodeOptions
}

// LoadManifest builds a Backend from a manifest file.
func LoadManifest(path string) (*Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m.Build(filepath.Dir(path))
}

// Build loads every band and registers it with a new Backend. Relative file
// paths are resolved against dir.
func (m Manifest) Build(dir string) (*Backend, error) {
	if err := m.Grid.Validate(); err != nil {
		return nil, fmt.Errorf("manifest grid: %w", err)
	}
	b := NewBackend(m.Grid)
	for _, name := range m.Collections {
		b.DeclareCollection(name)
	}

	for _, img := range m.Images {
		bands, err := m.loadBands(dir, img.Bands)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", img.Name, err)
		}
		b.AddImageBands(img.Name, bands...)
	}

	for _, s := range m.Scenes {
		if s.Collection == "" {
			return nil, fmt.Errorf("scene %s: missing collection", s.ID)
		}
		bands, err := m.loadBands(dir, s.Bands)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", s.ID, err)
		}
		scene := Scene{ID: s.ID, Time: s.Time.UTC(), Properties: s.Properties, Bands: bands}
		if fp := s.Footprint; fp != nil {
			scene.Footprint = orb.Bound{Min: orb.Point{fp[0], fp[1]}, Max: orb.Point{fp[2], fp[3]}}
		}
		b.AddScene(s.Collection, scene)
	}
	return b, nil
}

func (m Manifest) loadBands(dir string, sources []BandSource) ([]Band, error) {
	if len(sources) == 0 {
		return nil, errors.New("no bands")
	}
	bands := make([]Band, 0, len(sources))
	for _, src := range sources {
		g, err := m.loadBand(dir, src)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", src.Name, err)
		}
		bands = append(bands, Band{Name: src.Name, Grid: g})
	}
	return bands, nil
}

func (m Manifest) loadBand(dir string, src BandSource) (*Grid, error) {
	switch {
	case src.Constant != nil:
		return NewConstantGrid(m.Grid, *src.Constant), nil
	case src.Values != nil:
		if len(src.Values) != m.Grid.Len() {
			return nil, fmt.Errorf("%d values for %d pixels", len(src.Values), m.Grid.Len())
		}
		g := newEmptyGrid(m.Grid)
		for i, v := range src.Values {
			if v != nil {
				src.apply(g, i, *v)
			}
		}
		return g, nil
	case src.File != "":
	default:
		return nil, errors.New("band needs a file, constant or values")
	}

	path := src.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return DecodeTIFF(f, m.Grid, src.DecodeOptions)
	case ".nc", ".nc4", ".cdf":
		variable := src.Variable
		if variable == "" {
			variable = src.Name
		}
		return LoadNetCDF(path, variable, m.Grid, src.DecodeOptions)
	}
	return nil, fmt.Errorf("unsupported raster file %s", src.File)
}
