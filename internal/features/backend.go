package features

import (
	"fmt"
	"image"
	"sort"
)

// Backend computes keypoints and descriptors for the descriptor-based
// methods. Implementations must return one descriptor row per keypoint.
type Backend interface {
	// Name identifies the backend in configuration and logs.
	Name() string

	// DetectAndCompute runs SIFT or ORB on a grayscale image.
	DetectAndCompute(gray *image.Gray, method Method) ([]Keypoint, Descriptors, error)
}

// backends maps backend names to constructors. Entries are added from init
// functions only.
var backends = map[string]func() Backend{
	"native": func() Backend { return NewNativeBackend() },
}

// RegisterBackend makes a backend available to NewBackend. It is meant to be
// called from init functions.
func RegisterBackend(name string, factory func() Backend) {
	backends[name] = factory
}

// NewBackend returns the backend registered under name.
func NewBackend(name string) (Backend, error) {
	factory, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, BackendNames())
	}
	return factory(), nil
}

// BackendNames lists the registered backends in sorted order.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NativeBackend implements SIFT and ORB in pure Go.
type NativeBackend struct {
	SIFT SIFTParams
	ORB  ORBParams
}

// NewNativeBackend returns a NativeBackend with OpenCV's default parameters.
func NewNativeBackend() *NativeBackend {
	return &NativeBackend{
		SIFT: DefaultSIFTParams(),
		ORB:  DefaultORBParams(),
	}
}

// Name implements Backend.
func (b *NativeBackend) Name() string { return "native" }

// DetectAndCompute implements Backend.
func (b *NativeBackend) DetectAndCompute(gray *image.Gray, method Method) ([]Keypoint, Descriptors, error) {
	switch method {
	case SIFT:
		kps, desc := computeSIFT(gray, b.SIFT)
		return kps, desc, nil
	case ORB:
		kps, desc := computeORB(gray, b.ORB)
		return kps, desc, nil
	}
	return nil, Descriptors{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}
