package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-features-mcp/internal/features"
	imgutil "github.com/ironsheep/image-features-mcp/internal/imaging"
)

// DefaultMatchLimit is how many of the best matches are drawn when the
// caller does not ask for a specific number.
const DefaultMatchLimit = 50

// matchEndpointRadius is the circle drawn at both ends of a match line.
const matchEndpointRadius = 4

// ErrMatchOutOfRange reports a match that refers to a missing keypoint.
var ErrMatchOutOfRange = errors.New("match refers to an unknown keypoint")

var (
	captionForeground = color.NRGBA{255, 255, 255, 255}
	captionBackground = color.NRGBA{0, 0, 0, 160}
)

// DrawMatches places a and b side by side on a black canvas and connects the
// first limit matches with lines. A non-positive limit selects
// DefaultMatchLimit. Keypoints that take part in no drawn match are not
// shown.
//
// The canvas is wA+wB wide and max(hA, hB) tall; b starts at x = wA.
// Matches are drawn in slice order, so callers pass them sorted by distance.
func DrawMatches(a image.Image, kpA []features.Keypoint, b image.Image, kpB []features.Keypoint, matches []features.Match, limit int) (*image.NRGBA, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	if limit > len(matches) {
		limit = len(matches)
	}
	for _, m := range matches[:limit] {
		if m.QueryIdx < 0 || m.QueryIdx >= len(kpA) || m.TrainIdx < 0 || m.TrainIdx >= len(kpB) {
			return nil, fmt.Errorf("%w: (%d, %d)", ErrMatchOutOfRange, m.QueryIdx, m.TrainIdx)
		}
	}

	wA, hA := a.Bounds().Dx(), a.Bounds().Dy()
	wB, hB := b.Bounds().Dx(), b.Bounds().Dy()

	canvas := imaging.New(wA+wB, max(hA, hB), color.Black)
	canvas = imaging.Paste(canvas, a, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, b, image.Pt(wA, 0))

	offset := image.Pt(wA, 0)
	for k, m := range matches[:limit] {
		c := PaletteColor(k)
		pa := pointOf(kpA[m.QueryIdx])
		pb := pointOf(kpB[m.TrainIdx]).Add(offset)
		imgutil.DrawCircle(canvas, pa, matchEndpointRadius, c)
		imgutil.DrawCircle(canvas, pb, matchEndpointRadius, c)
		imgutil.DrawLine(canvas, pa, pb, c)
	}
	return canvas, nil
}

// Caption stamps text in the top-left corner of img.
func Caption(img *image.NRGBA, text string) {
	if text == "" {
		return
	}
	b := img.Bounds()
	imgutil.DrawLabel(img, b.Min.X+4, b.Min.Y+4, text, captionForeground, captionBackground)
}
