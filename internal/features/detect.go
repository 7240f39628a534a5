package features

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Detector runs feature detection with a configured backend.
//
// A Detector holds no per-image state and may be shared between goroutines
// as long as its backend can.
type Detector struct {
	backend   Backend
	highlight color.Color
}

// Option configures a Detector.
type Option func(*Detector)

// WithBackend selects the backend used for SIFT and ORB.
func WithBackend(b Backend) Option {
	return func(d *Detector) {
		if b != nil {
			d.backend = b
		}
	}
}

// WithHighlight sets the colour Harris paints over strong corners.
func WithHighlight(c color.Color) Option {
	return func(d *Detector) {
		if c != nil {
			d.highlight = c
		}
	}
}

// NewDetector returns a Detector using the native backend unless an option
// says otherwise.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		backend:   NewNativeBackend(),
		highlight: HarrisHighlight,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BackendName reports which backend computes SIFT and ORB.
func (d *Detector) BackendName() string {
	return d.backend.Name()
}

// Detect runs method on img.
//
// For SIFT and ORB the result carries keypoints and one descriptor per
// keypoint; Annotated is an unmodified copy of img. For Harris the result has
// no keypoints or descriptors and Annotated has every pixel whose response
// exceeds 1% of the maximum painted in the highlight colour.
//
// The input image is never modified.
//
// # Errors
//
//   - ErrEmptyImage if img is nil or has no pixels
//   - ErrUnsupportedMethod for an unrecognized method
//   - backend errors, wrapped
func (d *Detector) Detect(img image.Image, method Method) (*Detection, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	if method == Harris {
		return detectHarris(img, d.highlight), nil
	}

	kps, desc, err := d.backend.DetectAndCompute(toGray(img), method)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", d.backend.Name(), err)
	}
	if len(kps) != desc.Len() {
		return nil, fmt.Errorf("%s backend returned %d keypoints but %d descriptors",
			d.backend.Name(), len(kps), desc.Len())
	}

	return &Detection{
		Method:      method,
		Keypoints:   kps,
		Descriptors: desc,
		Annotated:   imaging.Clone(img),
	}, nil
}

// defaultDetector backs the package-level Detect.
var defaultDetector = NewDetector()

// Detect runs method on img with the native backend.
func Detect(img image.Image, method Method) (*Detection, error) {
	return defaultDetector.Detect(img, method)
}
