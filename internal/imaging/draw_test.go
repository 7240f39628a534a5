package imaging

import (
	"image"
	"image/color"
	"testing"
)

var red = color.NRGBA{255, 0, 0, 255}

func isRed(img *image.NRGBA, x, y int) bool {
	return img.NRGBAAt(x, y) == red
}

func TestDrawLine(t *testing.T) {
	tests := []struct {
		name   string
		p0, p1 image.Point
	}{
		{"horizontal", image.Pt(2, 5), image.Pt(17, 5)},
		{"vertical", image.Pt(4, 18), image.Pt(4, 1)},
		{"diagonal", image.Pt(0, 0), image.Pt(19, 19)},
		{"steep", image.Pt(3, 2), image.Pt(6, 17)},
		{"single point", image.Pt(9, 9), image.Pt(9, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := solid(20, 20, color.Black)
			DrawLine(img, tt.p0, tt.p1, red)

			if !isRed(img, tt.p0.X, tt.p0.Y) || !isRed(img, tt.p1.X, tt.p1.Y) {
				t.Error("line endpoints not painted")
			}

			// One pixel per step along the major axis.
			want := max(abs(tt.p1.X-tt.p0.X), abs(tt.p1.Y-tt.p0.Y)) + 1
			if got := countRed(img); got != want {
				t.Errorf("painted %d pixels, want %d", got, want)
			}
		})
	}
}

func TestDrawLine_Clipped(t *testing.T) {
	img := solid(10, 10, color.Black)
	// Should not panic
	DrawLine(img, image.Pt(-5, 5), image.Pt(15, 5), red)

	if got := countRed(img); got != 10 {
		t.Errorf("painted %d pixels, want 10", got)
	}
}

func TestDrawCircle(t *testing.T) {
	img := solid(21, 21, color.Black)
	DrawCircle(img, image.Pt(10, 10), 5, red)

	for _, p := range []image.Point{{15, 10}, {5, 10}, {10, 15}, {10, 5}} {
		if !isRed(img, p.X, p.Y) {
			t.Errorf("pixel %v on the circle not painted", p)
		}
	}
	if isRed(img, 10, 10) {
		t.Error("circle centre should stay unpainted")
	}
}

func TestDrawCircle_ZeroRadius(t *testing.T) {
	img := solid(5, 5, color.Black)
	DrawCircle(img, image.Pt(2, 2), 0, red)

	if countRed(img) != 1 || !isRed(img, 2, 2) {
		t.Error("zero radius should paint only the centre")
	}
}

func TestDrawLabel(t *testing.T) {
	img := solid(120, 40, color.Black)
	white := color.NRGBA{255, 255, 255, 255}
	bg := color.NRGBA{0, 0, 128, 255}

	box := DrawLabel(img, 3, 4, "ORB: 12", white, bg)

	if box.Min != image.Pt(3, 4) {
		t.Errorf("box origin: got %v, want (3,4)", box.Min)
	}
	if box.Dy() != 13+2*labelPadding {
		t.Errorf("box height: got %d", box.Dy())
	}
	if box.Dx() != 7*7+2*labelPadding {
		t.Errorf("box width: got %d", box.Dx())
	}
	if img.NRGBAAt(box.Min.X, box.Min.Y) != bg {
		t.Error("background not painted")
	}

	text := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if img.NRGBAAt(x, y) == white {
				text++
			}
		}
	}
	if text == 0 {
		t.Error("no glyph pixels drawn")
	}
	if img.NRGBAAt(box.Max.X+1, box.Min.Y) != (color.NRGBA{0, 0, 0, 255}) {
		t.Error("label painted outside its box")
	}
}

func TestDrawLabel_BoundsCheck(t *testing.T) {
	img := solid(10, 10, color.Black)
	// Should not panic
	DrawLabel(img, 5, 5, "overflowing", color.White, color.Black)
	DrawLabel(img, -20, -20, "x", color.White, color.Black)
}

func countRed(img *image.NRGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isRed(img, x, y) {
				n++
			}
		}
	}
	return n
}
