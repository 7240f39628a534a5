// Package imaging provides the image I/O and drawing primitives shared by the
// feature tools.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Loading
//
// ImageCache decodes PNG, JPEG and GIF files and keeps the decoded image in
// memory for a configurable time. Entries are keyed by path, file size and
// modification time, so a file replaced on disk is decoded again on the next
// Load.
//
// # Output
//
// EncodePNG renders an image as base64 PNG for transport in tool results.
// SavePNG writes an image to disk, replacing any existing file.
//
// # Drawing
//
// DrawLine, DrawCircle and DrawLabel paint directly onto a draw.Image.
// Pixels outside the destination bounds are silently skipped.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Drawing functions mutate
// their destination and must not be called concurrently on the same image.
package imaging
