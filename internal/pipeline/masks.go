package pipeline

import "github.com/couchcryptid/flood-detection-service/internal/raster"

const (
	cloudBit  = 1 << 10
	cirrusBit = 1 << 11

	reflectanceScale = 10000
)

// MaskClouds drops optical pixels flagged as cloud or cirrus in the QA60
// band and rescales digital numbers to reflectance.
func MaskClouds(img raster.Image) raster.Image {
	qa := img.Select(bandQA)
	zero := raster.Constant(0)
	clearSky := qa.BitwiseAnd(raster.Constant(cloudBit)).Eq(zero).
		And(qa.BitwiseAnd(raster.Constant(cirrusBit)).Eq(zero))
	return img.UpdateMask(clearSky).Divide(raster.Constant(reflectanceScale))
}

// MaskEdge returns a per-scene mapper that drops radar border noise below
// thresholdDB.
func MaskEdge(thresholdDB float64) func(raster.Image) raster.Image {
	return func(img raster.Image) raster.Image {
		return img.UpdateMask(img.Gte(raster.Constant(thresholdDB)))
	}
}
