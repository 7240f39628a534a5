package features

import (
	"fmt"
	"math/bits"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// MatchDescriptors pairs descriptors of set a (query) with descriptors of set b (train)
// using brute-force nearest-neighbour search with a symmetric cross-check.
//
// A pair (i, j) is returned only when j is the nearest neighbour of a[i] in b
// and i is the nearest neighbour of b[j] in a. Equal distances resolve to the
// lower index. SIFT descriptors are compared with the L2 norm and ORB
// descriptors with the Hamming norm.
//
// The result is sorted by ascending distance; equal distances keep query
// order. Matching against an empty set yields an empty slice and no error.
//
// # Errors
//
//   - ErrUnsupportedMethod for Harris or an unknown method
//   - ErrDescriptorMismatch when a non-empty set has the wrong kind for the
//     method or the two sets have different row lengths
func MatchDescriptors(a, b Descriptors, method Method) ([]Match, error) {
	norm := method.Norm()
	if norm == NormNone {
		return nil, fmt.Errorf("%w: %s has no descriptors to match", ErrUnsupportedMethod, method)
	}

	if a.Len() == 0 || b.Len() == 0 {
		return []Match{}, nil
	}

	want := method.DescriptorKind()
	if a.Kind != want || b.Kind != want {
		return nil, fmt.Errorf("%w: %s needs %s descriptors, got %s and %s",
			ErrDescriptorMismatch, method, want, a.Kind, b.Kind)
	}
	if err := checkRowWidths(a, b); err != nil {
		return nil, err
	}

	var dist func(i, j int) float64
	switch norm {
	case NormL2:
		qa, qb := widen(a.Float), widen(b.Float)
		dist = func(i, j int) float64 { return floats.Distance(qa[i], qb[j], 2) }
	case NormHamming:
		dist = func(i, j int) float64 { return float64(hamming(a.Binary[i], b.Binary[j])) }
	}

	n, m := a.Len(), b.Len()
	bestB := make([]int, n)
	bestBDist := make([]float64, n)
	bestA := make([]int, m)
	bestADist := make([]float64, m)
	for i := range bestB {
		bestB[i] = -1
	}
	for j := range bestA {
		bestA[j] = -1
	}

	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			d := dist(i, j)
			if bestB[i] < 0 || d < bestBDist[i] {
				bestB[i], bestBDist[i] = j, d
			}
			if bestA[j] < 0 || d < bestADist[j] {
				bestA[j], bestADist[j] = i, d
			}
		}
	}

	matches := make([]Match, 0, n)
	for i, j := range bestB {
		if bestA[j] == i {
			matches = append(matches, Match{QueryIdx: i, TrainIdx: j, Distance: bestBDist[i]})
		}
	}

	sort.SliceStable(matches, func(x, y int) bool {
		return matches[x].Distance < matches[y].Distance
	})
	return matches, nil
}

// Distance returns the distance between row i of a and row j of b under the
// method's norm. It returns ErrDescriptorMismatch when either index is out of
// range, the sets have the wrong kind, or the two rows differ in length.
func Distance(a, b Descriptors, i, j int, method Method) (float64, error) {
	norm := method.Norm()
	if norm == NormNone {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	want := method.DescriptorKind()
	if a.Kind != want || b.Kind != want {
		return 0, fmt.Errorf("%w: %s needs %s descriptors, got %s and %s",
			ErrDescriptorMismatch, method, want, a.Kind, b.Kind)
	}
	if i < 0 || i >= a.Len() || j < 0 || j >= b.Len() {
		return 0, fmt.Errorf("%w: rows (%d, %d) outside sets of %d and %d",
			ErrDescriptorMismatch, i, j, a.Len(), b.Len())
	}

	if norm == NormL2 {
		ra, rb := a.Float[i], b.Float[j]
		if len(ra) != len(rb) {
			return 0, fmt.Errorf("%w: row length %d differs from %d", ErrDescriptorMismatch, len(rb), len(ra))
		}
		return floats.Distance(widenRow(ra), widenRow(rb), 2), nil
	}
	ra, rb := a.Binary[i], b.Binary[j]
	if len(ra) != len(rb) {
		return 0, fmt.Errorf("%w: row length %d differs from %d", ErrDescriptorMismatch, len(rb), len(ra))
	}
	return float64(hamming(ra, rb)), nil
}

func checkRowWidths(a, b Descriptors) error {
	width := -1
	check := func(n int) error {
		if width < 0 {
			width = n
		}
		if n != width {
			return fmt.Errorf("%w: row length %d differs from %d", ErrDescriptorMismatch, n, width)
		}
		return nil
	}
	for _, set := range []Descriptors{a, b} {
		for _, row := range set.Float {
			if err := check(len(row)); err != nil {
				return err
			}
		}
		for _, row := range set.Binary {
			if err := check(len(row)); err != nil {
				return err
			}
		}
	}
	return nil
}

func widen(rows [][]float32) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = widenRow(r)
	}
	return out
}

func widenRow(r []float32) []float64 {
	out := make([]float64, len(r))
	for i, v := range r {
		out[i] = float64(v)
	}
	return out
}

func hamming(a, b []byte) int {
	n := 0
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return n
}
