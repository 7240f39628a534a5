package features

import (
	"image"
	"math"
	"math/rand"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/transform"
)

// ORBParams tunes the native ORB detector. Defaults follow OpenCV.
type ORBParams struct {
	// MaxFeatures is the number of keypoints retained across all levels.
	MaxFeatures int

	// ScaleFactor is the size ratio between consecutive pyramid levels.
	ScaleFactor float64

	// Levels is the number of pyramid levels.
	Levels int

	// EdgeThreshold is the border, in level pixels, where no keypoint is kept.
	EdgeThreshold int

	// PatchSize is the side of the patch used by orientation and BRIEF.
	PatchSize int

	// FastThreshold is the intensity difference for the FAST segment test.
	FastThreshold int
}

// DefaultORBParams returns OpenCV's ORB defaults.
func DefaultORBParams() ORBParams {
	return ORBParams{
		MaxFeatures:   500,
		ScaleFactor:   1.2,
		Levels:        8,
		EdgeThreshold: 31,
		PatchSize:     31,
		FastThreshold: 20,
	}
}

const (
	orbHarrisBlockSize = 7
	orbBriefBits       = ORBDescriptorBytes * 8
	orbBriefSeed       = 0x0B0B
	orbSmoothRadius    = 2.0
	fastArcLength      = 9
)

// fastCircle is the Bresenham circle of radius 3 used by FAST.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// defaultBriefPattern is the test pattern for the default 31 pixel patch.
var defaultBriefPattern = makeBriefPattern(DefaultORBParams().PatchSize)

// briefPatternFor returns the BRIEF test pattern for a patch size.
func briefPatternFor(patchSize int) [][4]int {
	if patchSize == DefaultORBParams().PatchSize {
		return defaultBriefPattern
	}
	return makeBriefPattern(patchSize)
}

// makeBriefPattern draws orbBriefBits point pairs (x1, y1, x2, y2) from an
// isotropic Gaussian around the patch centre, clamped to stay inside it.
func makeBriefPattern(patchSize int) [][4]int {
	rng := rand.New(rand.NewSource(orbBriefSeed))
	half := patchSize/2 - 2
	if half < 1 {
		half = 1
	}
	sigma := float64(patchSize) / 5
	sample := func() int {
		v := int(math.Round(rng.NormFloat64() * sigma))
		return clamp(v, -half, half)
	}
	pattern := make([][4]int, orbBriefBits)
	for i := range pattern {
		pattern[i] = [4]int{sample(), sample(), sample(), sample()}
	}
	return pattern
}

// orbCandidate is a FAST corner on one pyramid level.
type orbCandidate struct {
	x, y   int
	score  float64
	harris float64
}

// computeORB runs the full ORB pipeline on a grayscale image.
func computeORB(gray *image.Gray, p ORBParams) ([]Keypoint, Descriptors) {
	desc := Descriptors{Kind: BinaryDescriptor, Binary: [][]byte{}}
	keypoints := []Keypoint{}

	perLevel := featuresPerLevel(p)
	pattern := briefPatternFor(p.PatchSize)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	minSide := 2*p.EdgeThreshold + 1

	for level := 0; level < p.Levels; level++ {
		scale := math.Pow(p.ScaleFactor, float64(level))
		lw := int(math.Round(float64(w) / scale))
		lh := int(math.Round(float64(h) / scale))
		if lw < minSide || lh < minSide {
			break
		}

		levelGray := gray
		if level > 0 {
			levelGray = toGray(transform.Resize(gray, lw, lh, transform.Linear))
		}
		img := planeFromGray(levelGray, 1)

		candidates := detectFAST(img, p.FastThreshold, p.EdgeThreshold)
		candidates = retainBest(candidates, 2*perLevel[level], func(c orbCandidate) float64 { return c.score })
		for i := range candidates {
			candidates[i].harris = harrisAt(img, candidates[i].x, candidates[i].y)
		}
		candidates = retainBest(candidates, perLevel[level], func(c orbCandidate) float64 { return c.harris })
		if len(candidates) == 0 {
			continue
		}

		smoothed := planeFromGray(toGray(blur.Gaussian(levelGray, orbSmoothRadius)), 1)
		half := p.PatchSize / 2

		for _, c := range candidates {
			angle := intensityCentroidAngle(img, c.x, c.y, half)
			keypoints = append(keypoints, Keypoint{
				X:        float64(c.x) * scale,
				Y:        float64(c.y) * scale,
				Size:     float64(p.PatchSize) * scale,
				Angle:    angle,
				Response: c.harris,
				Octave:   level,
			})
			desc.Binary = append(desc.Binary, steeredBRIEF(smoothed, pattern, c.x, c.y, angle))
		}
	}

	if len(keypoints) > p.MaxFeatures {
		idx := strongestIndices(keypoints, p.MaxFeatures)
		kps := make([]Keypoint, len(idx))
		rows := make([][]byte, len(idx))
		for i, k := range idx {
			kps[i] = keypoints[k]
			rows[i] = desc.Binary[k]
		}
		keypoints, desc.Binary = kps, rows
	}
	return keypoints, desc
}

// featuresPerLevel spreads MaxFeatures over the pyramid so that each level
// gets a share proportional to its area.
func featuresPerLevel(p ORBParams) []int {
	counts := make([]int, p.Levels)
	factor := 1 / p.ScaleFactor
	desired := float64(p.MaxFeatures) * (1 - factor) / (1 - math.Pow(factor, float64(p.Levels)))
	sum := 0
	for level := 0; level < p.Levels-1; level++ {
		counts[level] = int(math.Round(desired))
		sum += counts[level]
		desired *= factor
	}
	if rest := p.MaxFeatures - sum; rest > 0 {
		counts[p.Levels-1] = rest
	}
	return counts
}

// detectFAST runs the FAST-9 segment test and keeps 3x3 local maxima of the
// corner score.
func detectFAST(img *plane, threshold, border int) []orbCandidate {
	if border < 3 {
		border = 3
	}
	t := float64(threshold)
	scores := newPlane(img.w, img.h)

	for y := border; y < img.h-border; y++ {
		for x := border; x < img.w-border; x++ {
			scores.pix[y*img.w+x] = fastScore(img, x, y, t)
		}
	}

	var out []orbCandidate
	for y := border; y < img.h-border; y++ {
		for x := border; x < img.w-border; x++ {
			s := scores.at(x, y)
			if s <= 0 {
				continue
			}
			isMax := true
			for dy := -1; dy <= 1 && isMax; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					n := scores.at(x+dx, y+dy)
					// Ties are broken towards the earlier pixel in raster order.
					if n > s || (n == s && (dy < 0 || (dy == 0 && dx < 0))) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				out = append(out, orbCandidate{x: x, y: y, score: s})
			}
		}
	}
	return out
}

// fastScore returns a positive score when at least fastArcLength contiguous
// circle pixels are all brighter than centre+t or all darker than centre-t.
// The score is the summed excess of the stronger qualifying side.
func fastScore(img *plane, x, y int, t float64) float64 {
	c := img.at(x, y)
	var diffs [16]float64
	for i, o := range fastCircle {
		diffs[i] = img.at(x+o[0], y+o[1]) - c
	}

	var best float64
	for _, sign := range [2]float64{1, -1} {
		run, maxRun := 0, 0
		for i := 0; i < 32; i++ {
			if sign*diffs[i%16] > t {
				run++
				if run > maxRun {
					maxRun = run
				}
			} else {
				run = 0
			}
		}
		if maxRun < fastArcLength {
			continue
		}
		var sum float64
		for _, d := range diffs {
			if v := sign*d - t; v > 0 {
				sum += v
			}
		}
		if sum > best {
			best = sum
		}
	}
	return best
}

// harrisAt computes the Harris response over a orbHarrisBlockSize window
// centred on (x, y).
func harrisAt(img *plane, x, y int) float64 {
	r := orbHarrisBlockSize / 2
	var sxx, syy, sxy float64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			px, py := x+dx, y+dy
			gx := (img.atClamped(px+1, py-1) + 2*img.atClamped(px+1, py) + img.atClamped(px+1, py+1)) -
				(img.atClamped(px-1, py-1) + 2*img.atClamped(px-1, py) + img.atClamped(px-1, py+1))
			gy := (img.atClamped(px-1, py+1) + 2*img.atClamped(px, py+1) + img.atClamped(px+1, py+1)) -
				(img.atClamped(px-1, py-1) + 2*img.atClamped(px, py-1) + img.atClamped(px+1, py-1))
			sxx += gx * gx
			syy += gy * gy
			sxy += gx * gy
		}
	}
	return sxx*syy - sxy*sxy - HarrisK*(sxx+syy)*(sxx+syy)
}

// intensityCentroidAngle returns the angle, in degrees [0, 360), from the
// keypoint to the intensity centroid of the circular patch around it.
func intensityCentroidAngle(img *plane, x, y, half int) float64 {
	var m01, m10 float64
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			if dx*dx+dy*dy > half*half {
				continue
			}
			v := img.atClamped(x+dx, y+dy)
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return degrees(m10, m01)
}

// steeredBRIEF rotates pattern by angle degrees and packs the results of
// I(p1) < I(p2) into bytes, least significant bit first.
func steeredBRIEF(smoothed *plane, pattern [][4]int, x, y int, angle float64) []byte {
	rad := angle * math.Pi / 180
	cosA, sinA := math.Cos(rad), math.Sin(rad)
	sample := func(px, py int) float64 {
		rx := int(math.Round(float64(px)*cosA - float64(py)*sinA))
		ry := int(math.Round(float64(px)*sinA + float64(py)*cosA))
		return smoothed.atClamped(x+rx, y+ry)
	}

	out := make([]byte, ORBDescriptorBytes)
	for i, pair := range pattern {
		if sample(pair[0], pair[1]) < sample(pair[2], pair[3]) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// retainBest keeps at most n candidates with the highest key, in raster
// order.
func retainBest(c []orbCandidate, n int, key func(orbCandidate) float64) []orbCandidate {
	if n <= 0 {
		return nil
	}
	if len(c) <= n {
		return c
	}
	sorted := make([]orbCandidate, len(c))
	copy(sorted, c)
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) > key(sorted[j]) })
	sorted = sorted[:n]
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].y != sorted[j].y {
			return sorted[i].y < sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})
	return sorted
}
