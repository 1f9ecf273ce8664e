// Package server implements the MCP (Model Context Protocol) server that
// exposes tiled object detection to MCP clients.
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
//   - image_load: Load an image and report its metadata and geotransform
//   - chips_plan: List the chips an image is split into
//   - chips_overlay: Draw the chip grid over the image
//   - chip_image: Return the pixels of one chip
//   - detect_objects: Run the detection pipeline, optionally annotated
//
// Every tool takes a source (local path or http(s) URL). Chip geometry and
// merge thresholds default to the server's configuration and may be
// overridden per call.
//
// # Image Caching
//
// Images are cached by source in the loader and reused across tool calls.
// The cache persists for the lifetime of the server process.
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
//	srv := server.New(server.Options{Loader: loader, Pipeline: p, Config: cfg})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
