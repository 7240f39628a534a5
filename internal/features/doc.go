// Package features detects image features and matches them across images.
//
// Three detection methods are supported:
//
//   - SIFT: scale-space extrema of a difference-of-Gaussians pyramid, each
//     described by a 128-value gradient histogram (float descriptor).
//   - ORB: FAST corners ranked by Harris response, oriented by intensity
//     centroid and described by a steered 256-bit BRIEF test string
//     (binary descriptor).
//   - Harris: a per-pixel corner response map. Harris produces no discrete
//     keypoints or descriptors; strong responses are painted onto a copy of
//     the input instead.
//
// # Backends
//
// SIFT and ORB keypoints are produced by a Backend. The "native" backend is
// pure Go and always available. Building with the "gocv" tag registers an
// "opencv" backend that delegates to OpenCV through gocv. Harris is always
// computed natively.
//
// # Matching
//
// Match performs brute-force nearest-neighbour matching with a symmetric
// cross-check: a pair (i, j) survives only if each side is the other's
// nearest neighbour. SIFT descriptors are compared with the L2 norm, ORB
// descriptors with the Hamming norm. Results are ordered by ascending
// distance.
//
// # Coordinate System
//
// Keypoint coordinates are in the pixel space of the full-resolution input,
// origin at the top-left corner, X rightward and Y downward. Angles are in
// degrees in [0, 360).
package features
