package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-features-mcp/internal/features"
	imgutil "github.com/ironsheep/image-features-mcp/internal/imaging"
)

// MinKeypointRadius is the smallest circle drawn for a keypoint.
const MinKeypointRadius = 2

// KeypointOptions controls DrawKeypoints.
type KeypointOptions struct {
	// Color paints every keypoint. Nil selects a per-keypoint palette colour.
	Color color.Color

	// Orientation adds a radius tick pointing along each keypoint's angle.
	Orientation bool
}

// DrawKeypoints returns a copy of img with a circle drawn around each
// keypoint, sized by the keypoint's neighbourhood.
func DrawKeypoints(img image.Image, keypoints []features.Keypoint, opts KeypointOptions) *image.NRGBA {
	out := imaging.Clone(img)
	for i, kp := range keypoints {
		c := opts.Color
		if c == nil {
			c = PaletteColor(i)
		}
		center := pointOf(kp)
		radius := keypointRadius(kp)
		imgutil.DrawCircle(out, center, radius, c)

		if opts.Orientation {
			rad := kp.Angle * math.Pi / 180
			tip := image.Pt(
				center.X+int(math.Round(float64(radius)*math.Cos(rad))),
				center.Y+int(math.Round(float64(radius)*math.Sin(rad))),
			)
			imgutil.DrawLine(out, center, tip, c)
		}
	}
	return out
}

func keypointRadius(kp features.Keypoint) int {
	r := int(math.Round(kp.Size / 2))
	if r < MinKeypointRadius {
		r = MinKeypointRadius
	}
	return r
}

func pointOf(kp features.Keypoint) image.Point {
	return image.Pt(int(math.Round(kp.X)), int(math.Round(kp.Y)))
}
