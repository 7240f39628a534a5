package render

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spreads consecutive hues as far apart as possible.
const goldenAngle = 137.50776405003785

// PaletteColor returns the overlay colour for the i-th keypoint or match.
// The sequence is deterministic and uses fully saturated, bright hues.
func PaletteColor(i int) color.NRGBA {
	hue := math.Mod(float64(i)*goldenAngle, 360)
	r, g, b := colorful.Hsv(hue, 0.9, 1).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
