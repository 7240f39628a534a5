package features

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SIFTParams tunes the native SIFT detector. Defaults follow OpenCV.
type SIFTParams struct {
	// MaxFeatures keeps only the strongest keypoints; 0 keeps all.
	MaxFeatures int

	// OctaveLayers is the number of scales sampled per octave.
	OctaveLayers int

	// ContrastThreshold rejects weak extrema in low-contrast regions.
	ContrastThreshold float64

	// EdgeThreshold rejects edge-like extrema; larger keeps more.
	EdgeThreshold float64

	// Sigma is the blur of the first octave's base image.
	Sigma float64
}

// DefaultSIFTParams returns OpenCV's SIFT defaults.
func DefaultSIFTParams() SIFTParams {
	return SIFTParams{
		MaxFeatures:       0,
		OctaveLayers:      3,
		ContrastThreshold: 0.04,
		EdgeThreshold:     10,
		Sigma:             1.6,
	}
}

const (
	siftInitSigma       = 0.5
	siftImgBorder       = 5
	siftMaxInterpSteps  = 5
	siftOriHistBins     = 36
	siftOriSigmaFactor  = 1.5
	siftOriRadiusFactor = 3 * siftOriSigmaFactor
	siftOriPeakRatio    = 0.8
	siftDescWidth       = 4
	siftDescHistBins    = 8
	siftDescScale       = 3.0
	siftDescMagThr      = 0.2
	siftIntDescrFactor  = 512.0
	siftMinOctaveSide   = 2*siftImgBorder + 3
)

// siftPoint is an extremum located in octave coordinates.
type siftPoint struct {
	octave   int
	layer    int
	x, y     int     // integer position in the octave
	xs, ys   float64 // refined position in the octave
	scale    float64 // sigma relative to the octave
	response float64
}

// computeSIFT runs the full SIFT pipeline on a grayscale image.
func computeSIFT(gray *image.Gray, p SIFTParams) ([]Keypoint, Descriptors) {
	desc := Descriptors{Kind: FloatDescriptor, Float: [][]float32{}}

	base := planeFromGray(gray, 1.0/255)
	sigDiff := math.Sqrt(math.Max(p.Sigma*p.Sigma-siftInitSigma*siftInitSigma, 0.01))
	base = base.blur(sigDiff)

	minSide := base.w
	if base.h < minSide {
		minSide = base.h
	}
	nOctaves := int(math.Round(math.Log2(float64(minSide)))) - 2
	if nOctaves < 1 {
		nOctaves = 1
	}

	gpyr := buildGaussianPyramid(base, nOctaves, p)
	dogs := buildDoGPyramid(gpyr)

	var keypoints []Keypoint
	seen := make(map[Keypoint]bool)

	for _, pt := range findScaleSpaceExtrema(dogs, p) {
		img := gpyr[pt.octave][pt.layer]
		octScale := math.Ldexp(1, pt.octave)

		for _, ori := range dominantOrientations(img, pt) {
			angle := 360 - ori
			if math.Abs(angle-360) < 1e-6 {
				angle = 0
			}
			kp := Keypoint{
				X:        pt.xs * octScale,
				Y:        pt.ys * octScale,
				Size:     2 * pt.scale * octScale,
				Angle:    angle,
				Response: pt.response,
				Octave:   pt.octave,
			}
			if seen[kp] {
				continue
			}
			seen[kp] = true
			keypoints = append(keypoints, kp)
			desc.Float = append(desc.Float, siftDescriptor(img, pt.xs, pt.ys, ori, pt.scale))
		}
	}

	if p.MaxFeatures > 0 && len(keypoints) > p.MaxFeatures {
		keypoints, desc.Float = retainStrongestFloat(keypoints, desc.Float, p.MaxFeatures)
	}
	if keypoints == nil {
		keypoints = []Keypoint{}
	}
	return keypoints, desc
}

// buildGaussianPyramid returns OctaveLayers+3 progressively blurred images
// per octave, each octave half the size of the previous one.
func buildGaussianPyramid(base *plane, nOctaves int, p SIFTParams) [][]*plane {
	layers := p.OctaveLayers + 3
	sig := make([]float64, layers)
	sig[0] = p.Sigma
	k := math.Pow(2, 1/float64(p.OctaveLayers))
	for i := 1; i < layers; i++ {
		prev := math.Pow(k, float64(i-1)) * p.Sigma
		total := prev * k
		sig[i] = math.Sqrt(total*total - prev*prev)
	}

	var pyr [][]*plane
	for o := 0; o < nOctaves; o++ {
		var first *plane
		if o == 0 {
			first = base
		} else {
			first = pyr[o-1][p.OctaveLayers].halve()
		}
		if first.w < siftMinOctaveSide || first.h < siftMinOctaveSide {
			break
		}
		octave := make([]*plane, layers)
		octave[0] = first
		for i := 1; i < layers; i++ {
			octave[i] = octave[i-1].blur(sig[i])
		}
		pyr = append(pyr, octave)
	}
	return pyr
}

func buildDoGPyramid(gpyr [][]*plane) [][]*plane {
	dogs := make([][]*plane, len(gpyr))
	for o, octave := range gpyr {
		dogs[o] = make([]*plane, len(octave)-1)
		for i := 0; i+1 < len(octave); i++ {
			dogs[o][i] = octave[i+1].sub(octave[i])
		}
	}
	return dogs
}

// findScaleSpaceExtrema finds local extrema across space and scale, refines
// them and drops low-contrast and edge responses.
func findScaleSpaceExtrema(dogs [][]*plane, p SIFTParams) []siftPoint {
	threshold := 0.5 * p.ContrastThreshold / float64(p.OctaveLayers)
	var points []siftPoint

	for o, octave := range dogs {
		for layer := 1; layer <= p.OctaveLayers; layer++ {
			cur := octave[layer]
			for y := siftImgBorder; y < cur.h-siftImgBorder; y++ {
				for x := siftImgBorder; x < cur.w-siftImgBorder; x++ {
					v := cur.at(x, y)
					if math.Abs(v) <= threshold || !isExtremum(octave, layer, x, y, v) {
						continue
					}
					if pt, ok := refineExtremum(octave, o, layer, x, y, p); ok {
						points = append(points, pt)
					}
				}
			}
		}
	}
	return points
}

func isExtremum(octave []*plane, layer, x, y int, v float64) bool {
	for l := layer - 1; l <= layer+1; l++ {
		img := octave[l]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if l == layer && dx == 0 && dy == 0 {
					continue
				}
				n := img.at(x+dx, y+dy)
				if v > 0 && n > v {
					return false
				}
				if v < 0 && n < v {
					return false
				}
			}
		}
	}
	return true
}

// refineExtremum fits a 3-D quadratic around the sample and moves towards
// the interpolated extremum.
func refineExtremum(octave []*plane, o, layer, x, y int, p SIFTParams) (siftPoint, bool) {
	var offset [3]float64
	var grad [3]float64
	var hess *mat.SymDense

	step := 0
	for ; step < siftMaxInterpSteps; step++ {
		prev, cur, next := octave[layer-1], octave[layer], octave[layer+1]
		v2 := 2 * cur.at(x, y)

		grad = [3]float64{
			(cur.at(x+1, y) - cur.at(x-1, y)) * 0.5,
			(cur.at(x, y+1) - cur.at(x, y-1)) * 0.5,
			(next.at(x, y) - prev.at(x, y)) * 0.5,
		}
		dxx := cur.at(x+1, y) + cur.at(x-1, y) - v2
		dyy := cur.at(x, y+1) + cur.at(x, y-1) - v2
		dss := next.at(x, y) + prev.at(x, y) - v2
		dxy := (cur.at(x+1, y+1) - cur.at(x-1, y+1) - cur.at(x+1, y-1) + cur.at(x-1, y-1)) * 0.25
		dxs := (next.at(x+1, y) - next.at(x-1, y) - prev.at(x+1, y) + prev.at(x-1, y)) * 0.25
		dys := (next.at(x, y+1) - next.at(x, y-1) - prev.at(x, y+1) + prev.at(x, y-1)) * 0.25

		hess = mat.NewSymDense(3, []float64{
			dxx, dxy, dxs,
			dxy, dyy, dys,
			dxs, dys, dss,
		})

		var sol mat.VecDense
		if err := sol.SolveVec(hess, mat.NewVecDense(3, grad[:])); err != nil {
			return siftPoint{}, false
		}
		offset = [3]float64{-sol.AtVec(0), -sol.AtVec(1), -sol.AtVec(2)}

		if math.Abs(offset[0]) < 0.5 && math.Abs(offset[1]) < 0.5 && math.Abs(offset[2]) < 0.5 {
			break
		}
		if math.Abs(offset[0]) > float64(math.MaxInt32/3) ||
			math.Abs(offset[1]) > float64(math.MaxInt32/3) ||
			math.Abs(offset[2]) > float64(math.MaxInt32/3) {
			return siftPoint{}, false
		}

		x += int(math.Round(offset[0]))
		y += int(math.Round(offset[1]))
		layer += int(math.Round(offset[2]))

		if layer < 1 || layer > p.OctaveLayers ||
			x < siftImgBorder || x >= cur.w-siftImgBorder ||
			y < siftImgBorder || y >= cur.h-siftImgBorder {
			return siftPoint{}, false
		}
	}
	if step >= siftMaxInterpSteps {
		return siftPoint{}, false
	}

	cur := octave[layer]
	contrast := cur.at(x, y) + 0.5*(grad[0]*offset[0]+grad[1]*offset[1]+grad[2]*offset[2])
	if math.Abs(contrast)*float64(p.OctaveLayers) < p.ContrastThreshold {
		return siftPoint{}, false
	}

	dxx, dyy, dxy := hess.At(0, 0), hess.At(1, 1), hess.At(0, 1)
	tr := dxx + dyy
	det := dxx*dyy - dxy*dxy
	r := p.EdgeThreshold
	if det <= 0 || tr*tr*r >= (r+1)*(r+1)*det {
		return siftPoint{}, false
	}

	return siftPoint{
		octave:   o,
		layer:    layer,
		x:        x,
		y:        y,
		xs:       float64(x) + offset[0],
		ys:       float64(y) + offset[1],
		scale:    p.Sigma * math.Pow(2, (float64(layer)+offset[2])/float64(p.OctaveLayers)),
		response: math.Abs(contrast),
	}, true
}

// dominantOrientations returns the histogram peak angles (degrees,
// counter-clockwise with Y pointing up) within 80% of the strongest peak.
func dominantOrientations(img *plane, pt siftPoint) []float64 {
	radius := int(math.Round(siftOriRadiusFactor * pt.scale))
	sigma := siftOriSigmaFactor * pt.scale
	expScale := -1 / (2 * sigma * sigma)

	var raw [siftOriHistBins]float64
	for i := -radius; i <= radius; i++ {
		y := pt.y + i
		if y <= 0 || y >= img.h-1 {
			continue
		}
		for j := -radius; j <= radius; j++ {
			x := pt.x + j
			if x <= 0 || x >= img.w-1 {
				continue
			}
			dx := img.at(x+1, y) - img.at(x-1, y)
			dy := img.at(x, y-1) - img.at(x, y+1)
			weight := math.Exp(float64(i*i+j*j) * expScale)
			bin := int(math.Round(float64(siftOriHistBins) / 360 * degrees(dx, dy)))
			if bin >= siftOriHistBins {
				bin -= siftOriHistBins
			}
			if bin < 0 {
				bin += siftOriHistBins
			}
			raw[bin] += weight * math.Hypot(dx, dy)
		}
	}

	var hist [siftOriHistBins]float64
	n := siftOriHistBins
	for i := 0; i < n; i++ {
		hist[i] = (raw[(i-2+n)%n]+raw[(i+2)%n])*(1.0/16) +
			(raw[(i-1+n)%n]+raw[(i+1)%n])*(4.0/16) +
			raw[i]*(6.0/16)
	}

	maxVal := 0.0
	for _, v := range hist {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return nil
	}

	var angles []float64
	threshold := maxVal * siftOriPeakRatio
	for i := 0; i < n; i++ {
		l, r := hist[(i-1+n)%n], hist[(i+1)%n]
		if hist[i] > l && hist[i] > r && hist[i] >= threshold {
			bin := float64(i) + 0.5*(l-r)/(l-2*hist[i]+r)
			if bin < 0 {
				bin += float64(n)
			} else if bin >= float64(n) {
				bin -= float64(n)
			}
			angles = append(angles, 360/float64(n)*bin)
		}
	}
	return angles
}

// siftDescriptor builds the 4x4x8 gradient histogram around (px, py) in
// octave coordinates, rotated to ori degrees.
func siftDescriptor(img *plane, px, py, ori, scale float64) []float32 {
	const (
		d = siftDescWidth
		n = siftDescHistBins
	)
	cx, cy := int(math.Round(px)), int(math.Round(py))

	rad := ori * math.Pi / 180
	histWidth := siftDescScale * scale
	radius := int(math.Round(histWidth * math.Sqrt2 * (d + 1) * 0.5))
	if maxR := int(math.Sqrt(float64(img.w*img.w + img.h*img.h))); radius > maxR {
		radius = maxR
	}
	cosT := math.Cos(rad) / histWidth
	sinT := math.Sin(rad) / histWidth
	binsPerDeg := float64(n) / 360
	expScale := -1 / (d * d * 0.5)

	hist := make([]float64, (d+2)*(d+2)*(n+2))

	for i := -radius; i <= radius; i++ {
		for j := -radius; j <= radius; j++ {
			cRot := float64(j)*cosT - float64(i)*sinT
			rRot := float64(j)*sinT + float64(i)*cosT
			rbin := rRot + d/2 - 0.5
			cbin := cRot + d/2 - 0.5
			r, c := cy+i, cx+j

			if rbin <= -1 || rbin >= d || cbin <= -1 || cbin >= d ||
				r <= 0 || r >= img.h-1 || c <= 0 || c >= img.w-1 {
				continue
			}

			dx := img.at(c+1, r) - img.at(c-1, r)
			dy := img.at(c, r-1) - img.at(c, r+1)
			mag := math.Hypot(dx, dy) * math.Exp((cRot*cRot+rRot*rRot)*expScale)
			obin := (degrees(dx, dy) - ori) * binsPerDeg

			r0 := int(math.Floor(rbin))
			c0 := int(math.Floor(cbin))
			o0 := int(math.Floor(obin))
			rbin -= float64(r0)
			cbin -= float64(c0)
			obin -= float64(o0)
			if o0 < 0 {
				o0 += n
			}
			if o0 >= n {
				o0 -= n
			}

			vR1 := mag * rbin
			vR0 := mag - vR1
			vRC11 := vR1 * cbin
			vRC10 := vR1 - vRC11
			vRC01 := vR0 * cbin
			vRC00 := vR0 - vRC01
			vRCO111 := vRC11 * obin
			vRCO110 := vRC11 - vRCO111
			vRCO101 := vRC10 * obin
			vRCO100 := vRC10 - vRCO101
			vRCO011 := vRC01 * obin
			vRCO010 := vRC01 - vRCO011
			vRCO001 := vRC00 * obin
			vRCO000 := vRC00 - vRCO001

			idx := ((r0+1)*(d+2)+c0+1)*(n+2) + o0
			hist[idx] += vRCO000
			hist[idx+1] += vRCO001
			hist[idx+(n+2)] += vRCO010
			hist[idx+(n+3)] += vRCO011
			hist[idx+(d+2)*(n+2)] += vRCO100
			hist[idx+(d+2)*(n+2)+1] += vRCO101
			hist[idx+(d+3)*(n+2)] += vRCO110
			hist[idx+(d+3)*(n+2)+1] += vRCO111
		}
	}

	dst := make([]float64, d*d*n)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			idx := ((i+1)*(d+2) + (j + 1)) * (n + 2)
			hist[idx] += hist[idx+n]
			hist[idx+1] += hist[idx+n+1]
			for k := 0; k < n; k++ {
				dst[(i*d+j)*n+k] = hist[idx+k]
			}
		}
	}

	var nrm2 float64
	for _, v := range dst {
		nrm2 += v * v
	}
	thr := math.Sqrt(nrm2) * siftDescMagThr
	nrm2 = 0
	for i, v := range dst {
		v = math.Min(v, thr)
		dst[i] = v
		nrm2 += v * v
	}
	factor := siftIntDescrFactor / math.Max(math.Sqrt(nrm2), 1e-7)

	out := make([]float32, SIFTDescriptorSize)
	for i, v := range dst {
		out[i] = float32(math.Min(math.Round(v*factor), 255))
	}
	return out
}

// degrees returns atan2(dy, dx) in [0, 360).
func degrees(dx, dy float64) float64 {
	a := math.Atan2(dy, dx) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a -= 360
	}
	return a
}

// retainStrongestFloat keeps the n keypoints with the largest response,
// preserving their relative order.
func retainStrongestFloat(kps []Keypoint, rows [][]float32, n int) ([]Keypoint, [][]float32) {
	idx := strongestIndices(kps, n)
	outK := make([]Keypoint, len(idx))
	outD := make([][]float32, len(idx))
	for i, k := range idx {
		outK[i] = kps[k]
		outD[i] = rows[k]
	}
	return outK, outD
}

// strongestIndices returns the indices of the n strongest keypoints in
// ascending index order.
func strongestIndices(kps []Keypoint, n int) []int {
	idx := make([]int, len(kps))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return kps[idx[a]].Response > kps[idx[b]].Response
	})
	if n < len(idx) {
		idx = idx[:n]
	}
	sort.Ints(idx)
	return idx
}
