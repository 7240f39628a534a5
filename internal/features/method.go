package features

import (
	"fmt"
	"strings"
)

// Method selects a feature detection algorithm.
type Method string

const (
	SIFT   Method = "SIFT"
	ORB    Method = "ORB"
	Harris Method = "Harris"
)

// Norm is the distance used to compare two descriptors.
type Norm int

const (
	NormNone Norm = iota
	NormL2
	NormHamming
)

func (n Norm) String() string {
	switch n {
	case NormL2:
		return "L2"
	case NormHamming:
		return "Hamming"
	default:
		return "none"
	}
}

// ParseMethod converts a user supplied tag into a Method. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sift":
		return SIFT, nil
	case "orb":
		return ORB, nil
	case "harris":
		return Harris, nil
	}
	return "", fmt.Errorf("%w: %q (expected SIFT, ORB or Harris)", ErrUnsupportedMethod, s)
}

// Valid reports whether m is one of the recognized methods.
func (m Method) Valid() bool {
	return m == SIFT || m == ORB || m == Harris
}

// HasDescriptors reports whether the method yields keypoints and descriptors
// that can be matched.
func (m Method) HasDescriptors() bool {
	return m == SIFT || m == ORB
}

// Norm returns the descriptor distance used for the method.
func (m Method) Norm() Norm {
	switch m {
	case SIFT:
		return NormL2
	case ORB:
		return NormHamming
	default:
		return NormNone
	}
}

// DescriptorKind returns the kind of descriptor the method produces.
func (m Method) DescriptorKind() DescriptorKind {
	switch m {
	case SIFT:
		return FloatDescriptor
	case ORB:
		return BinaryDescriptor
	default:
		return NoDescriptor
	}
}

// MethodInfo describes a method for display in a method picker.
type MethodInfo struct {
	Name        Method `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	Descriptors bool   `json:"produces_descriptors"`
	Norm        string `json:"match_norm,omitempty"`
}

// Methods lists the supported methods in picker order.
func Methods() []MethodInfo {
	return []MethodInfo{
		{
			Name:        SIFT,
			Title:       "Scale-Invariant Feature Transform",
			Description: "Detects keypoints that are invariant to scaling, rotation, and illumination.",
			Reference:   "https://docs.opencv.org/4.x/da/df5/tutorial_py_sift_intro.html",
			Descriptors: true,
			Norm:        NormL2.String(),
		},
		{
			Name:        ORB,
			Title:       "Oriented FAST and Rotated BRIEF",
			Description: "A free alternative to SIFT. Faster but less accurate.",
			Reference:   "https://docs.opencv.org/4.x/db/d95/classcv_1_1ORB.html",
			Descriptors: true,
			Norm:        NormHamming.String(),
		},
		{
			Name:        Harris,
			Title:       "Harris Corner Detection",
			Description: "Detects corners where two edges meet. Produces a response map, not matchable descriptors.",
			Reference:   "https://docs.opencv.org/4.x/dd/d1a/group__imgproc__feature.html",
		},
	}
}
