package features

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
)

const (
	// HarrisBlockSize is the side of the window summing the structure tensor.
	HarrisBlockSize = 2

	// HarrisApertureSize is the Sobel kernel size used for derivatives.
	HarrisApertureSize = 3

	// HarrisK is the sensitivity constant in det(M) - k*trace(M)^2.
	HarrisK = 0.04

	// HarrisThresholdRatio is the fraction of the maximum response a pixel
	// must exceed to be highlighted.
	HarrisThresholdRatio = 0.01
)

// HarrisHighlight is the default colour painted over strong corners.
var HarrisHighlight = color.NRGBA{R: 255, G: 0, B: 0, A: 255}

// HarrisResponse computes the Harris corner response for every pixel.
//
// The result is indexed [y][x]. Derivatives come from 3x3 Sobel kernels on
// the 0-255 intensity scale; the structure tensor is summed over a 2x2 window
// anchored at (x-1, y-1). Borders replicate the edge pixels.
//
// The response is det(M) - HarrisK*trace(M)^2: large positive at corners,
// negative along edges, near zero in flat regions.
func HarrisResponse(gray *image.Gray) [][]float64 {
	width := gray.Rect.Dx()
	height := gray.Rect.Dy()

	src := make([][]float64, height)
	for y := 0; y < height; y++ {
		src[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			src[y][x] = float64(gray.Pix[y*gray.Stride+x])
		}
	}

	gradX, gradY := sobel(src, width, height)

	lo := -(HarrisBlockSize / 2)
	hi := lo + HarrisBlockSize - 1

	response := make([][]float64, height)
	for y := 0; y < height; y++ {
		response[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sxx, syy, sxy float64
			for ky := lo; ky <= hi; ky++ {
				for kx := lo; kx <= hi; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					gx, gy := gradX[py][px], gradY[py][px]
					sxx += gx * gx
					syy += gy * gy
					sxy += gx * gy
				}
			}
			det := sxx*syy - sxy*sxy
			trace := sxx + syy
			response[y][x] = det - HarrisK*trace*trace
		}
	}
	return response
}

// HarrisThreshold returns the response a pixel must exceed to count as a
// corner: HarrisThresholdRatio times the largest response in the map.
func HarrisThreshold(response [][]float64) float64 {
	if len(response) == 0 || len(response[0]) == 0 {
		return 0
	}
	maxResp := floats.Max(response[0])
	for _, row := range response[1:] {
		if m := floats.Max(row); m > maxResp {
			maxResp = m
		}
	}
	return HarrisThresholdRatio * maxResp
}

// detectHarris paints every pixel above the Harris threshold on a copy of img.
func detectHarris(img image.Image, highlight color.Color) *Detection {
	gray := toGray(img)
	response := HarrisResponse(gray)
	threshold := HarrisThreshold(response)

	out := imaging.Clone(img)
	count := 0
	for y, row := range response {
		for x, v := range row {
			if v > threshold {
				out.Set(x, y, highlight)
				count++
			}
		}
	}

	return &Detection{
		Method:      Harris,
		Annotated:   out,
		Highlighted: count,
	}
}

// sobel computes horizontal and vertical 3x3 Sobel derivatives.
func sobel(src [][]float64, width, height int) ([][]float64, [][]float64) {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	gradX := make([][]float64, height)
	gradY := make([][]float64, height)
	for y := 0; y < height; y++ {
		gradX[y] = make([]float64, width)
		gradY[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := src[clamp(y+ky, 0, height-1)][clamp(x+kx, 0, width-1)]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			gradX[y][x] = gx
			gradY[y][x] = gy
		}
	}
	return gradX, gradY
}
