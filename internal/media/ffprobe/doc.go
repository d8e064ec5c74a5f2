// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties, tags, and side data
//   - Prober: a metadata prober for extraction sessions
//
// Inspect executes ffprobe and returns the parsed Result; Parse decodes a
// captured payload without running the binary.
package ffprobe
