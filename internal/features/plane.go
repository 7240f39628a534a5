package features

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// plane is a single-channel float image stored row-major.
type plane struct {
	w, h int
	pix  []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

// toGray converts any image to 8-bit luminance with its origin at (0,0).
// bild returns grayscale as RGBA with equal channels, so the red channel is
// taken as the luminance.
func toGray(img image.Image) *image.Gray {
	g := effect.Grayscale(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+4*w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range dst {
			dst[x] = row[4*x]
		}
	}
	return out
}

// planeFromGray converts gray pixels to floats multiplied by scale.
func planeFromGray(g *image.Gray, scale float64) *plane {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	p := newPlane(w, h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			p.pix[y*w+x] = float64(v) * scale
		}
	}
	return p
}

func (p *plane) at(x, y int) float64 {
	return p.pix[y*p.w+x]
}

// atClamped reads with replicated borders.
func (p *plane) atClamped(x, y int) float64 {
	return p.pix[clamp(y, 0, p.h-1)*p.w+clamp(x, 0, p.w-1)]
}

// blur applies a separable Gaussian with the given sigma.
func (p *plane) blur(sigma float64) *plane {
	if sigma <= 0 {
		out := newPlane(p.w, p.h)
		copy(out.pix, p.pix)
		return out
	}
	kernel := gaussianKernel(sigma)
	r := len(kernel) / 2

	tmp := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var sum float64
			for k, kv := range kernel {
				sum += kv * p.atClamped(x+k-r, y)
			}
			tmp.pix[y*p.w+x] = sum
		}
	}

	out := newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var sum float64
			for k, kv := range kernel {
				sum += kv * tmp.atClamped(x, y+k-r)
			}
			out.pix[y*p.w+x] = sum
		}
	}
	return out
}

// halve keeps every second pixel in both directions.
func (p *plane) halve() *plane {
	w, h := p.w/2, p.h/2
	out := newPlane(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.pix[y*w+x] = p.at(2*x, 2*y)
		}
	}
	return out
}

// sub returns p - q. Both planes must have the same size.
func (p *plane) sub(q *plane) *plane {
	out := newPlane(p.w, p.h)
	for i := range out.pix {
		out.pix[i] = p.pix[i] - q.pix[i]
	}
	return out
}

// gaussianKernel returns a normalized 1-D kernel covering ±4 sigma.
func gaussianKernel(sigma float64) []float64 {
	r := int(math.Ceil(sigma * 4))
	if r < 1 {
		r = 1
	}
	k := make([]float64, 2*r+1)
	var sum float64
	for i := -r; i <= r; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+r] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
