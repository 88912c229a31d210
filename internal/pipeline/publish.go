package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

const squareMetersPerHectare = 10000

// FloodedArea sums per-pixel area under the mask. No flooded pixels means
// zero hectares, not an error.
func FloodedArea(ctx context.Context, backend raster.Backend, mask raster.Image, a domain.Analysis, s Settings) (float64, error) {
	stats, err := backend.ReduceRegion(ctx, mask.Multiply(raster.PixelArea()), raster.ReduceRequest{
		Reducer:   raster.ReducerSum,
		Region:    a.AOI.Polygon(),
		Scale:     s.AreaScale,
		MaxPixels: s.MaxPixels,
	})
	if err != nil {
		return 0, classify("reduce", err)
	}
	m2, ok := stats.Get(raster.StatSum)
	if !ok {
		return 0, nil
	}
	return m2 / squareMetersPerHectare, nil
}

// PublishTiles materialises the mask as a tile layer.
func PublishTiles(ctx context.Context, backend raster.Backend, mask raster.Image, s Settings) (string, error) {
	url, err := backend.TileURL(ctx, mask, s.Visualization)
	if err != nil {
		return "", classify("tiles", err)
	}
	if url == "" {
		return "", &domain.ExternalServiceError{Op: "tiles", Err: errors.New("could not extract tile URL: empty template")}
	}
	return url, nil
}

// classify wraps unclassified backend failures as ExternalServiceError.
// Cancellation and already-typed errors pass through.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrExternalService),
		errors.Is(err, domain.ErrDataAvailability),
		errors.Is(err, domain.ErrDegenerateInput):
		return err
	}
	return &domain.ExternalServiceError{Op: op, Err: err}
}
