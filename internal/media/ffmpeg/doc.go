// Package ffmpeg implements a slot-based decoder engine on top of an ffmpeg
// subprocess.
//
// Encoded samples are written to ffmpeg's stdin as an elementary stream;
// decoded frames are read back from stdout as raw RGBA scaled to the
// configured surface. Each frame becomes an output buffer that the caller
// releases, optionally posting it to the surface.
package ffmpeg
