package features

import "errors"

var (
	// ErrUnsupportedMethod is returned for a method tag other than SIFT, ORB
	// or Harris, and by Match for methods that carry no descriptors.
	ErrUnsupportedMethod = errors.New("unsupported feature method")

	// ErrEmptyImage is returned when the input image has no pixels.
	ErrEmptyImage = errors.New("image has no pixels")

	// ErrDescriptorMismatch is returned when two descriptor sets cannot be
	// compared under the requested method.
	ErrDescriptorMismatch = errors.New("descriptor sets are not comparable")

	// ErrUnknownBackend is returned by NewBackend for an unregistered name.
	ErrUnknownBackend = errors.New("unknown feature backend")
)
