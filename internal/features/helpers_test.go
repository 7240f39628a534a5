package features

import (
	"image"
	"image/color"
	"math/rand"
)

// texturedImage draws seeded random rectangles on a dark background, kept
// clear of a 36 pixel border so ORB's edge threshold does not hide them.
// Images under 100 pixels use a 4 pixel border instead.
func texturedImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, 0, 0, w, h, color.RGBA{40, 40, 40, 255})

	margin := 36
	if w < 100 || h < 100 {
		margin = 4
	}
	for n := 0; n < 30; n++ {
		rw := 6 + rng.Intn(14)
		rh := 6 + rng.Intn(14)
		x := margin + rng.Intn(w-2*margin-rw)
		y := margin + rng.Intn(h-2*margin-rh)
		v := uint8(120 + rng.Intn(136))
		fillRect(img, x, y, x+rw, y+rh, color.RGBA{v, v / 2, 255 - v, 255})
	}
	return img
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, 0, 0, w, h, c)
	return img
}

func fillRect(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			img.Set(x, y, c)
		}
	}
}
