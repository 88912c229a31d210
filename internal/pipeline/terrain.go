package pipeline

import (
	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/fuzzy"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// TerrainMembership scores how readily water pools on the terrain: flat
// ground near 1, steep slopes near 0 (FM_HD).
func TerrainMembership(a domain.Analysis, s Settings, c Collections) raster.Image {
	slope := raster.LoadImage(c.Elevation).Select(bandElevation).Slope()
	return fuzzy.ZImage(slope, s.Slope).Clip(a.AOI.Polygon())
}
