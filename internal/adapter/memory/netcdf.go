package memory

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
)

// LoadNetCDF reads a 2-D variable (rows x cols) from a netCDF file. A 3-D
// variable is read from its first time step.
func LoadNetCDF(path, variable string, spec GridSpec, opts DecodeOptions) (*Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	vr, err := nc.GetVariable(variable)
	if err != nil {
		return nil, fmt.Errorf("netcdf %s: variable %q: %w", path, variable, err)
	}
	if vr == nil {
		return nil, fmt.Errorf("netcdf %s: variable %q not found", path, variable)
	}

	var rows [][]float64
	switch v := vr.Values.(type) {
	case [][]float32:
		rows = widen(v)
	case [][]float64:
		rows = v
	case [][]int16:
		rows = widen(v)
	case [][]int32:
		rows = widen(v)
	case [][][]float32:
		if len(v) > 0 {
			rows = widen(v[0])
		}
	case [][][]float64:
		if len(v) > 0 {
			rows = v[0]
		}
	default:
		return nil, fmt.Errorf("netcdf %s: variable %q has unsupported type %T", path, variable, vr.Values)
	}

	if len(rows) != spec.Rows {
		return nil, fmt.Errorf("netcdf %s: variable %q has %d rows, grid has %d", path, variable, len(rows), spec.Rows)
	}
	g := newEmptyGrid(spec)
	for r, line := range rows {
		if len(line) != spec.Cols {
			return nil, fmt.Errorf("netcdf %s: row %d has %d columns, grid has %d", path, r, len(line), spec.Cols)
		}
		for c, raw := range line {
			opts.apply(g, r*spec.Cols+c, raw)
		}
	}
	return g, nil
}

func widen[T float32 | int16 | int32](in [][]T) [][]float64 {
	out := make([][]float64, len(in))
	for i, line := range in {
		out[i] = make([]float64, len(line))
		for j, v := range line {
			out[i][j] = float64(v)
		}
	}
	return out
}
