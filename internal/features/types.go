package features

import "image"

// Keypoint is a salient image location with scale and orientation metadata.
type Keypoint struct {
	// X and Y are the keypoint position in input pixel coordinates.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Size is the diameter of the meaningful neighbourhood in pixels.
	Size float64 `json:"size"`

	// Angle is the dominant orientation in degrees [0, 360).
	Angle float64 `json:"angle"`

	// Response is the detector strength; larger is stronger.
	Response float64 `json:"response"`

	// Octave is the pyramid level the keypoint was found on.
	Octave int `json:"octave"`
}

// DescriptorKind tells float descriptors from binary ones.
type DescriptorKind int

const (
	NoDescriptor DescriptorKind = iota
	FloatDescriptor
	BinaryDescriptor
)

func (k DescriptorKind) String() string {
	switch k {
	case FloatDescriptor:
		return "float32"
	case BinaryDescriptor:
		return "binary"
	default:
		return "none"
	}
}

const (
	// SIFTDescriptorSize is the number of float values in a SIFT descriptor.
	SIFTDescriptorSize = 128

	// ORBDescriptorBytes is the number of bytes in an ORB descriptor (256 bits).
	ORBDescriptorBytes = 32
)

// Descriptors holds one descriptor row per keypoint. Exactly one of Float
// and Binary is populated, according to Kind.
type Descriptors struct {
	Kind   DescriptorKind
	Float  [][]float32
	Binary [][]byte
}

// Len returns the number of descriptor rows.
func (d Descriptors) Len() int {
	switch d.Kind {
	case FloatDescriptor:
		return len(d.Float)
	case BinaryDescriptor:
		return len(d.Binary)
	}
	return 0
}

// Dim returns the dimensionality of a row: float values for float
// descriptors, bits for binary ones. It returns 0 for an empty set.
func (d Descriptors) Dim() int {
	switch {
	case d.Kind == FloatDescriptor && len(d.Float) > 0:
		return len(d.Float[0])
	case d.Kind == BinaryDescriptor && len(d.Binary) > 0:
		return len(d.Binary[0]) * 8
	}
	return 0
}

// Match pairs a keypoint of the query set with one of the train set.
type Match struct {
	QueryIdx int     `json:"query_idx"`
	TrainIdx int     `json:"train_idx"`
	Distance float64 `json:"distance"`
}

// Detection is the outcome of running a method on one image.
type Detection struct {
	Method      Method
	Keypoints   []Keypoint
	Descriptors Descriptors

	// Annotated is a copy of the input. For Harris, strong responses are
	// painted in the highlight colour.
	Annotated image.Image

	// Highlighted counts the pixels painted by Harris.
	Highlighted int
}
