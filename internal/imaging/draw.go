package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelPadding is the background margin around label text, in pixels.
const labelPadding = 2

// DrawLine paints a one pixel wide line from p0 to p1 (inclusive) using
// Bresenham's algorithm.
func DrawLine(dst draw.Image, p0, p1 image.Point, c color.Color) {
	dx := abs(p1.X - p0.X)
	dy := -abs(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}

	x, y := p0.X, p0.Y
	err := dx + dy
	for {
		setPixel(dst, x, y, c)
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// DrawCircle paints the outline of a circle with the given radius using the
// midpoint algorithm. A radius below 1 paints the centre pixel only.
func DrawCircle(dst draw.Image, center image.Point, radius int, c color.Color) {
	if radius < 1 {
		setPixel(dst, center.X, center.Y, c)
		return
	}
	x, y := radius, 0
	d := 1 - radius
	for x >= y {
		for _, o := range [8][2]int{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			setPixel(dst, center.X+o[0], center.Y+o[1], c)
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

// DrawLabel writes text with its top-left corner at (x, y) on a filled
// background box, using the 7x13 basic font. It returns the box it covered.
func DrawLabel(dst draw.Image, x, y int, text string, fg, bg color.Color) image.Rectangle {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	box := image.Rect(x, y, x+width+2*labelPadding, y+face.Height+2*labelPadding)

	draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)

	d.Dot = fixed.P(x+labelPadding, y+labelPadding+face.Ascent)
	d.DrawString(text)
	return box
}

func setPixel(dst draw.Image, x, y int, c color.Color) {
	if (image.Point{X: x, Y: y}).In(dst.Bounds()) {
		dst.Set(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
