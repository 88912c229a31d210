// Command genfixture writes a synthetic river-valley flood scenario as an
// offline scene manifest: a GeoTIFF DEM and water-occurrence layer plus
// radar, optical and rainfall scenes. The output drives cmd/floodrun and
// the memory raster backend (RASTER_BACKEND=memory).
//
// Usage:
//
//	go run ./cmd/genfixture -out testdata/valley
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/tiff"

	"github.com/couchcryptid/flood-detection-service/internal/adapter/memory"
	"github.com/couchcryptid/flood-detection-service/internal/pipeline"
)

const (
	riverCol    = 30
	valleyHalf  = 8 // columns either side of the river
	floodTopRow = 10
	floodEndRow = 40

	// DEM samples are stored in decimetres.
	demScale = 0.1
)

var grid = memory.GridSpec{West: -0.55, North: 39.47, PixelWidth: 0.005, PixelHeight: 0.005, Cols: 60, Rows: 48}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the manifest and rasters")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeTIFF(filepath.Join(*out, "dem.tif"), demImage()); err != nil {
		return fmt.Errorf("writing DEM: %w", err)
	}
	log.Printf("wrote DEM: %dx%d", grid.Cols, grid.Rows)

	if err := writeTIFF(filepath.Join(*out, "occurrence.tif"), occurrenceImage()); err != nil {
		return fmt.Errorf("writing water occurrence: %w", err)
	}
	log.Printf("wrote water occurrence")

	m := manifest()
	if err := writeJSON(filepath.Join(*out, "manifest.json"), m); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	log.Printf("wrote manifest: %d scenes, %d images", len(m.Scenes), len(m.Images))
	return nil
}

func distanceFromRiver(col int) int {
	d := col - riverCol
	if d < 0 {
		return -d
	}
	return d
}

// elevation is a flat floodplain flanked by hills steep enough to fall
// outside the terrain membership.
func elevation(col int) float64 {
	d := distanceFromRiver(col)
	if d <= valleyHalf {
		return 5 + 0.5*float64(d)
	}
	return 9 + 40*float64(d-valleyHalf)
}

func demImage() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, grid.Cols, grid.Rows))
	for row := range grid.Rows {
		for col := range grid.Cols {
			img.SetGray16(col, row, color.Gray16{Y: uint16(elevation(col) / demScale)})
		}
	}
	return img
}

// occurrenceImage marks the river channel as permanent water and the rest
// as rarely wet.
func occurrenceImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, grid.Cols, grid.Rows))
	for row := range grid.Rows {
		for col := range grid.Cols {
			v := uint8(5)
			if distanceFromRiver(col) <= 1 {
				v = 90
			}
			img.SetGray(col, row, color.Gray{Y: v})
		}
	}
	return img
}

func flooded(i int) bool {
	row, col := i/grid.Cols, i%grid.Cols
	return distanceFromRiver(col) <= valleyHalf && row >= floodTopRow && row < floodEndRow
}

func backscatter(fn func(i int) float64) []*float64 {
	out := make([]*float64, grid.Len())
	for i := range out {
		v := fn(i)
		out[i] = &v
	}
	return out
}

func constant(v float64) *float64 { return &v }

func radarScene(id string, at time.Time, pass string, vh []*float64) memory.SceneEntry {
	return memory.SceneEntry{
		Collection: pipeline.DefaultCollections().Radar,
		ID:         id,
		Time:       at,
		Properties: map[string]any{
			"instrumentMode":                  "IW",
			"transmitterReceiverPolarisation": []string{"VV", "VH"},
			"orbitProperties_pass":            pass,
			"resolution_meters":               10,
		},
		Bands: []memory.BandSource{
			{Name: "VH", Values: vh},
			{Name: "VV", Constant: constant(-6)},
		},
	}
}

func manifest() memory.Manifest {
	c := pipeline.DefaultCollections()
	dry := backscatter(func(int) float64 { return -11 })
	wet := backscatter(func(i int) float64 {
		if flooded(i) {
			return -17
		}
		return -11
	})

	return memory.Manifest{
		Grid:        grid,
		Collections: []string{c.Radar, c.Optical, c.Precipitation},
		Images: []memory.ImageEntry{
			{Name: c.Water, Bands: []memory.BandSource{{Name: "occurrence", File: "occurrence.tif"}}},
			{Name: c.Elevation, Bands: []memory.BandSource{{
				Name: "elevation", File: "dem.tif", DecodeOptions: memory.DecodeOptions{Scale: demScale},
			}}},
		},
		Scenes: []memory.SceneEntry{
			radarScene("S1A_IW_GRDH_20241012", time.Date(2024, time.October, 12, 6, 0, 0, 0, time.UTC), "DESCENDING", dry),
			radarScene("S1A_IW_GRDH_20241024", time.Date(2024, time.October, 24, 6, 0, 0, 0, time.UTC), "DESCENDING", dry),
			radarScene("S1A_IW_GRDH_20241105", time.Date(2024, time.November, 5, 6, 0, 0, 0, time.UTC), "DESCENDING", wet),
			{
				Collection: c.Optical,
				ID:         "S2B_20230614",
				Time:       time.Date(2023, time.June, 14, 10, 30, 0, 0, time.UTC),
				Properties: map[string]any{"CLOUDY_PIXEL_PERCENTAGE": 3},
				Bands: []memory.BandSource{
					{Name: "B11", Constant: constant(1200)},
					{Name: "B8", Constant: constant(2800)},
					{Name: "QA60", Constant: constant(0)},
				},
			},
			{
				Collection: c.Precipitation,
				ID:         "20241029",
				Time:       time.Date(2024, time.October, 29, 12, 0, 0, 0, time.UTC),
				Bands:      []memory.BandSource{{Name: "precipitation", Constant: constant(80)}},
			},
		},
	}
}

func writeTIFF(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
