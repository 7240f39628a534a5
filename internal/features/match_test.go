package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatSet(rows ...[]float32) Descriptors {
	return Descriptors{Kind: FloatDescriptor, Float: rows}
}

func binarySet(rows ...[]byte) Descriptors {
	return Descriptors{Kind: BinaryDescriptor, Binary: rows}
}

func randomFloatSet(rng *rand.Rand, n, dim int) Descriptors {
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = make([]float32, dim)
		for j := range rows[i] {
			rows[i][j] = float32(rng.Intn(256))
		}
	}
	return floatSet(rows...)
}

func randomBinarySet(rng *rand.Rand, n int) Descriptors {
	rows := make([][]byte, n)
	for i := range rows {
		rows[i] = make([]byte, ORBDescriptorBytes)
		rng.Read(rows[i])
	}
	return binarySet(rows...)
}

func TestMatchDescriptors_L2KnownPairs(t *testing.T) {
	a := floatSet(
		[]float32{0, 0},
		[]float32{10, 10},
		[]float32{5, 0},
	)
	b := floatSet(
		[]float32{10, 11},
		[]float32{0, 0.5},
	)

	matches, err := MatchDescriptors(a, b, SIFT)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, Match{QueryIdx: 0, TrainIdx: 1, Distance: 0.5}, matches[0])
	assert.Equal(t, 1, matches[1].QueryIdx)
	assert.Equal(t, 0, matches[1].TrainIdx)
	assert.InDelta(t, 1.0, matches[1].Distance, 1e-12)
}

func TestMatchDescriptors_CrossCheckRejectsOneSidedPairs(t *testing.T) {
	// b[0] is nearest to both a[0] and a[1]; only the closer a[0] survives.
	a := floatSet([]float32{0}, []float32{3})
	b := floatSet([]float32{1}, []float32{10})

	matches, err := MatchDescriptors(a, b, SIFT)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].QueryIdx)
	assert.Equal(t, 0, matches[0].TrainIdx)
}

func TestMatchDescriptors_HammingKnownPairs(t *testing.T) {
	zero := make([]byte, ORBDescriptorBytes)
	ones := make([]byte, ORBDescriptorBytes)
	for i := range ones {
		ones[i] = 0xFF
	}
	nearZero := make([]byte, ORBDescriptorBytes)
	nearZero[0] = 0x03
	nearOnes := make([]byte, ORBDescriptorBytes)
	copy(nearOnes, ones)
	nearOnes[5] = 0xFE

	matches, err := MatchDescriptors(binarySet(zero, ones), binarySet(nearOnes, nearZero), ORB)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, Match{QueryIdx: 1, TrainIdx: 0, Distance: 1}, matches[0])
	assert.Equal(t, Match{QueryIdx: 0, TrainIdx: 1, Distance: 2}, matches[1])
}

func TestMatchDescriptors_SortedAndMutualNearest(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cases := []struct {
		method Method
		a, b   Descriptors
	}{
		{SIFT, randomFloatSet(rng, 60, SIFTDescriptorSize), randomFloatSet(rng, 45, SIFTDescriptorSize)},
		{ORB, randomBinarySet(rng, 80), randomBinarySet(rng, 70)},
	}

	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			matches, err := MatchDescriptors(tc.a, tc.b, tc.method)
			require.NoError(t, err)
			require.NotEmpty(t, matches)
			assert.LessOrEqual(t, len(matches), min(tc.a.Len(), tc.b.Len()))

			for k := 1; k < len(matches); k++ {
				assert.LessOrEqual(t, matches[k-1].Distance, matches[k].Distance)
			}
			assertMutualNearest(t, tc.a, tc.b, tc.method, matches)
		})
	}
}

func TestMatchDescriptors_EmptySets(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	full := randomFloatSet(rng, 5, 4)

	for _, tc := range []struct {
		name string
		a, b Descriptors
	}{
		{"empty query", Descriptors{Kind: FloatDescriptor}, full},
		{"empty train", full, Descriptors{}},
		{"both empty", Descriptors{}, Descriptors{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			matches, err := MatchDescriptors(tc.a, tc.b, SIFT)
			require.NoError(t, err)
			assert.NotNil(t, matches)
			assert.Empty(t, matches)
		})
	}
}

func TestMatchDescriptors_HarrisUnsupported(t *testing.T) {
	_, err := MatchDescriptors(Descriptors{}, Descriptors{}, Harris)
	assert.True(t, errors.Is(err, ErrUnsupportedMethod), "got %v", err)

	_, err = MatchDescriptors(Descriptors{}, Descriptors{}, Method("bogus"))
	assert.True(t, errors.Is(err, ErrUnsupportedMethod), "got %v", err)
}

func TestMatchDescriptors_DescriptorMismatch(t *testing.T) {
	f := floatSet([]float32{1, 2})
	b := binarySet([]byte{1, 2})

	_, err := MatchDescriptors(f, b, SIFT)
	assert.True(t, errors.Is(err, ErrDescriptorMismatch))

	_, err = MatchDescriptors(f, f, ORB)
	assert.True(t, errors.Is(err, ErrDescriptorMismatch))

	_, err = MatchDescriptors(f, floatSet([]float32{1, 2, 3}), SIFT)
	assert.True(t, errors.Is(err, ErrDescriptorMismatch))
}

func TestMatchDescriptors_IdenticalImagesSIFT(t *testing.T) {
	img := texturedImage(160, 160, 21)
	a, err := Detect(img, SIFT)
	require.NoError(t, err)
	b, err := Detect(img, SIFT)
	require.NoError(t, err)
	require.NotEmpty(t, a.Keypoints)

	matches, err := MatchDescriptors(a.Descriptors, b.Descriptors, SIFT)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches), len(a.Keypoints))

	matched := make(map[int]bool)
	for _, m := range matches {
		matched[m.QueryIdx] = true
		assert.InDelta(t, 0, m.Distance, 1e-9)
		kpA, kpB := a.Keypoints[m.QueryIdx], b.Keypoints[m.TrainIdx]
		assert.InDelta(t, kpA.X, kpB.X, 1e-9)
		assert.InDelta(t, kpA.Y, kpB.Y, 1e-9)
	}

	// Any unmatched keypoint must collide with an identical descriptor.
	for i := range a.Keypoints {
		if matched[i] {
			continue
		}
		twin := false
		for k := range b.Keypoints {
			if k == i {
				continue
			}
			d, err := Distance(a.Descriptors, b.Descriptors, i, k, SIFT)
			require.NoError(t, err)
			if d == 0 {
				twin = true
				break
			}
		}
		assert.Truef(t, twin, "keypoint %d unmatched without a duplicate descriptor", i)
	}
}

func TestMatchDescriptors_DistinctImagesORB(t *testing.T) {
	a, err := Detect(texturedImage(160, 160, 31), ORB)
	require.NoError(t, err)
	b, err := Detect(texturedImage(160, 160, 32), ORB)
	require.NoError(t, err)

	matches, err := MatchDescriptors(a.Descriptors, b.Descriptors, ORB)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), min(len(a.Keypoints), len(b.Keypoints)))

	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Distance, matches[0].Distance)
		assert.Equal(t, m.Distance, math.Trunc(m.Distance), "Hamming distance must be integral")
	}
	assertMutualNearest(t, a.Descriptors, b.Descriptors, ORB, matches)
}

func TestDistance(t *testing.T) {
	d, err := Distance(floatSet([]float32{0, 0}), floatSet([]float32{3, 4}), 0, 0, SIFT)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-12)

	d, err = Distance(binarySet([]byte{0x0F}), binarySet([]byte{0xF0}), 0, 0, ORB)
	require.NoError(t, err)
	assert.Equal(t, 8.0, d)

	_, err = Distance(Descriptors{}, Descriptors{}, 0, 0, Harris)
	assert.True(t, errors.Is(err, ErrUnsupportedMethod))
}

func assertMutualNearest(t *testing.T, a, b Descriptors, method Method, matches []Match) {
	t.Helper()
	for _, m := range matches {
		for j := 0; j < b.Len(); j++ {
			d, err := Distance(a, b, m.QueryIdx, j, method)
			require.NoError(t, err)
			assert.GreaterOrEqualf(t, d, m.Distance, "train %d closer to query %d than its match", j, m.QueryIdx)
		}
		for i := 0; i < a.Len(); i++ {
			d, err := Distance(a, b, i, m.TrainIdx, method)
			require.NoError(t, err)
			assert.GreaterOrEqualf(t, d, m.Distance, "query %d closer to train %d than its match", i, m.TrainIdx)
		}
	}
}

func TestDistance_RejectsBadRows(t *testing.T) {
	f := floatSet([]float32{1, 2}, []float32{3, 4})
	bin := binarySet([]byte{0x01, 0x02})

	tests := []struct {
		name   string
		a, b   Descriptors
		i, j   int
		method Method
	}{
		{"query index past end", f, f, 2, 0, SIFT},
		{"train index past end", f, f, 0, 5, SIFT},
		{"negative query index", f, f, -1, 0, SIFT},
		{"negative train index", bin, bin, 0, -1, ORB},
		{"empty train set", f, floatSet(), 0, 0, SIFT},
		{"float rows of different length", f, floatSet([]float32{1, 2, 3}), 0, 0, SIFT},
		{"binary rows of different length", bin, binarySet([]byte{0x01}), 0, 0, ORB},
		{"binary set for SIFT", bin, bin, 0, 0, SIFT},
		{"float set for ORB", f, f, 0, 0, ORB},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() {
				_, err = Distance(tc.a, tc.b, tc.i, tc.j, tc.method)
			})
			assert.True(t, errors.Is(err, ErrDescriptorMismatch), "got %v", err)
		})
	}
}
