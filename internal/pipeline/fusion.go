package pipeline

import (
	"github.com/couchcryptid/flood-detection-service/internal/fuzzy"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Fusion holds the intermediate memberships of the fusion stage.
type Fusion struct {
	Union   raster.Image // FM1 = max(FM_FV, FM_OW)
	Blended raster.Image // FM2, gated on FM1 > ConfidenceGate
	Context raster.Image // Z(FM2 - local mean)
	Score   raster.Image // FM3 = FM2 * context
	Mask    raster.Image // flooded pixels only, value 1
}

// Fuse combines the three memberships into the final binary flood mask.
func Fuse(floodVariation, water, terrain raster.Image, s Settings) Fusion {
	var f Fusion
	f.Union = floodVariation.Max(water)

	gated := f.Union.UpdateMask(f.Union.Gt(raster.Constant(s.ConfidenceGate)))
	f.Blended = gated.Multiply(raster.Constant(s.DetectionWeight)).
		Add(terrain.Multiply(raster.Constant(s.TerrainWeight))).
		Divide(raster.Constant(s.DetectionWeight + s.TerrainWeight))

	local := f.Blended.FocalMean(s.ContextRadiusPixels, raster.KernelSquare, raster.UnitsPixels)
	f.Context = fuzzy.ZImage(f.Blended.Subtract(local), s.Context)
	f.Score = f.Blended.Multiply(f.Context)

	f.Mask = binaryMask(f.Score.Multiply(floodVariation))
	return f
}

// binaryMask keeps pixels above zero as 1 and drops the rest.
func binaryMask(img raster.Image) raster.Image {
	return img.Gt(raster.Constant(0)).SelfMask().Rename("flooded")
}
