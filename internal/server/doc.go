// Package server implements the MCP (Model Context Protocol) server for
// feature detection and matching.
//
// This package provides a JSON-RPC 2.0 server that exposes SIFT, ORB and
// Harris feature detection and cross-image matching through the MCP
// protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and get metadata
//   - features_methods: Describe SIFT, ORB and Harris
//   - features_detect: Detect features on one image
//   - features_match: Detect and match features on two images
//   - features_save: Write the match composite to a PNG file
//
// Every call recomputes detection and matching from the decoded images; no
// results are kept between calls.
//
// # Image Caching
//
// Decoded images are cached by path, file size and modification time for
// the configured TTL, so repeated calls on the same upload skip decoding
// while a replaced file is picked up immediately.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.NewWithConfig(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
