package memory

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/tiff"
)

// DecodeOptions maps raw sample values to physical units:
// value = raw*Scale + Offset. Samples equal to NoData are masked.
type DecodeOptions struct {
	Scale  float64  `json:"scale,omitempty"`
	Offset float64  `json:"offset,omitempty"`
	NoData *float64 `json:"nodata,omitempty"`
}

func (o DecodeOptions) apply(g *Grid, i int, raw float64) {
	if o.NoData != nil && raw == *o.NoData {
		return
	}
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}
	g.set(i, raw*scale+o.Offset, true)
}

// DecodeTIFF reads a single-band integer GeoTIFF whose pixel dimensions
// match spec. Georeferencing tags are not read; the grid is assumed to be
// aligned to spec.
func DecodeTIFF(r io.Reader, spec GridSpec, opts DecodeOptions) (*Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != spec.Cols || b.Dy() != spec.Rows {
		return nil, fmt.Errorf("tiff is %dx%d, grid is %dx%d", b.Dx(), b.Dy(), spec.Cols, spec.Rows)
	}

	g := newEmptyGrid(spec)
	switch src := img.(type) {
	case *image.Gray16:
		for row := 0; row < spec.Rows; row++ {
			for col := 0; col < spec.Cols; col++ {
				opts.apply(g, row*spec.Cols+col, float64(src.Gray16At(b.Min.X+col, b.Min.Y+row).Y))
			}
		}
	case *image.Gray:
		for row := 0; row < spec.Rows; row++ {
			for col := 0; col < spec.Cols; col++ {
				opts.apply(g, row*spec.Cols+col, float64(src.GrayAt(b.Min.X+col, b.Min.Y+row).Y))
			}
		}
	default:
		for row := 0; row < spec.Rows; row++ {
			for col := 0; col < spec.Cols; col++ {
				c := color.Gray16Model.Convert(img.At(b.Min.X+col, b.Min.Y+row)).(color.Gray16)
				opts.apply(g, row*spec.Cols+col, float64(c.Y))
			}
		}
	}
	return g, nil
}
