package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// writeRainfall writes a classic netCDF file holding a 2-D daily total, a
// 3-D (time, lat, lon) stack, a variable on a mismatched grid and a 1-D
// series.
func writeRainfall(t *testing.T, path string) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	require.NoError(t, cw.AddVar("daily", api.Variable{
		Values:     [][]float32{{0, 1.5, 3}, {4.5, 6, 7.5}, {9, 10.5, -9999}},
		Dimensions: []string{"lat", "lon"},
	}))
	require.NoError(t, cw.AddVar("precip", api.Variable{
		Values: [][][]float64{
			{{10, 20, 30}, {40, 50, 60}, {70, 80, 90}},
			{{-1, -1, -1}, {-1, -1, -1}, {-1, -1, -1}},
		},
		Dimensions: []string{"time", "lat", "lon"},
	}))
	require.NoError(t, cw.AddVar("coarse", api.Variable{
		Values:     [][]float64{{1, 2, 3}, {4, 5, 6}},
		Dimensions: []string{"y", "x"},
	}))
	require.NoError(t, cw.AddVar("station", api.Variable{
		Values:     []float64{1, 2, 3},
		Dimensions: []string{"n"},
	}))
	require.NoError(t, cw.Close())
}

func TestLoadNetCDF_ThroughManifest(t *testing.T) {
	dir := t.TempDir()
	writeRainfall(t, filepath.Join(dir, "chirps.nc"))

	nodata := -9999.0
	m := Manifest{
		Grid:        testSpec,
		Collections: []string{"precipitation"},
		Images: []ImageEntry{{Name: "daily", Bands: []BandSource{{
			Name: "precipitation", File: "chirps.nc", Variable: "daily",
			DecodeOptions: DecodeOptions{NoData: &nodata},
		}}}},
		Scenes: []SceneEntry{{
			Collection: "precipitation",
			ID:         "20241029",
			// Variable defaults to the band name.
			Bands: []BandSource{{Name: "precip", File: "chirps.nc"}},
		}},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	b, err := LoadManifest(path)
	require.NoError(t, err)

	daily := eval(t, b, raster.LoadImage("daily"))
	assertGrid(t, daily, []float64{0, 1.5, 3, 4.5, 6, 7.5, 9, 10.5, nan})

	// A 3-D variable contributes its first time step.
	first := eval(t, b, raster.Load("precipitation").Select("precip").Sum())
	assertGrid(t, first, []float64{10, 20, 30, 40, 50, 60, 70, 80, 90})
}

func TestLoadNetCDF_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chirps.nc")
	writeRainfall(t, path)

	tests := []struct {
		name     string
		variable string
		spec     GridSpec
	}{
		{"missing variable", "evaporation", testSpec},
		{"row mismatch", "coarse", testSpec},
		{"unsupported rank", "station", testSpec},
		{"column mismatch", "daily", GridSpec{West: 0, North: 0.1, PixelWidth: 0.025, PixelHeight: 0.1 / 3, Cols: 4, Rows: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNetCDF(path, tt.variable, tt.spec, DecodeOptions{})
			assert.Error(t, err)
		})
	}

	_, err := LoadNetCDF(filepath.Join(t.TempDir(), "absent.nc"), "daily", testSpec, DecodeOptions{})
	assert.Error(t, err)
}
