// Package extract drives bounded frame extraction from a video file.
//
// A Session sequences metadata probing, video track selection, geometry
// planning, and collaborator construction, then hands control to a Driver.
// The Driver runs a single cooperative feed/drain loop: it polls the decoder
// for input slots and output buffers with a short timeout, forwards rendered
// buffers to the frame sink, and delivers frames to a Listener until the
// decoder reports end of stream or cancellation is observed.
//
// Demuxers, decoder engines, frame sinks, and metadata probers are
// interfaces supplied at construction time. Concrete implementations live
// under internal/media; tests use scripted fakes.
package extract
