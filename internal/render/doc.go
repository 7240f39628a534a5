// Package render draws feature detection results for display: keypoint
// overlays on a single image and the side-by-side match composite.
//
// Keypoint coordinates are taken relative to the top-left corner of the
// image they were detected on, whatever its bounds. Every function returns a
// new image and leaves its inputs untouched.
package render
