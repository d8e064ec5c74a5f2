package extract

import (
	"context"
	"time"
)

// Sample is one encoded chunk read from the demuxer.
type Sample struct {
	TrackID          int
	Data             []byte
	PresentationTime time.Duration
}

// Demuxer separates a container into per-track sample streams.
type Demuxer interface {
	// Tracks lists every track in container order.
	Tracks() []TrackFormat
	// SelectTrack restricts ReadSample to the given track index.
	SelectTrack(index int) error
	// ReadSample returns the sample under the cursor without consuming it.
	// It returns io.EOF once the selected tracks are exhausted.
	ReadSample() (Sample, error)
	// Advance moves the cursor to the next sample and reports whether one
	// exists.
	Advance() bool
	// Close releases the underlying container. It is safe to call twice.
	Close() error
}

// DemuxerOpener opens a container for demuxing.
type DemuxerOpener func(ctx context.Context, path string) (Demuxer, error)

// Surface is the render target a decoder draws into. A decoder posts the
// contents of each buffer released with render=true.
type Surface interface {
	Size() (width, height int)
	Post(image []byte)
}

// OutputKind classifies the result of Decoder.DequeueOutput.
type OutputKind int

const (
	// OutputTryAgain means no output was ready within the timeout.
	OutputTryAgain OutputKind = iota
	// OutputFormatChanged signals a new output format; informational.
	OutputFormatChanged
	// OutputBuffersChanged signals invalidated output buffers; informational.
	OutputBuffersChanged
	// OutputError carries an engine status code. The driver tolerates it.
	OutputError
	// OutputBuffer carries a decoded buffer index.
	OutputBuffer
)

func (k OutputKind) String() string {
	switch k {
	case OutputTryAgain:
		return "try_again"
	case OutputFormatChanged:
		return "format_changed"
	case OutputBuffersChanged:
		return "buffers_changed"
	case OutputError:
		return "error"
	case OutputBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// OutputStatus is returned by Decoder.DequeueOutput.
type OutputStatus struct {
	Kind        OutputKind
	Code        int
	Index       int
	Size        int
	EndOfStream bool
}

// Decoder is a stateful decoder engine with slot-based input and output.
type Decoder interface {
	Configure(format TrackFormat, surface Surface) error
	Start() error
	// DequeueInput waits up to timeout for a free input slot.
	DequeueInput(timeout time.Duration) (slot int, ok bool)
	// QueueInput submits data for a previously dequeued slot. A zero-length
	// submission with eos set marks the end of input.
	QueueInput(slot int, data []byte, pts time.Duration, eos bool) error
	// DequeueOutput waits up to timeout for output.
	DequeueOutput(timeout time.Duration) OutputStatus
	// ReleaseOutput returns a buffer to the engine, posting it to the
	// configured surface first when render is set.
	ReleaseOutput(index int, render bool) error
	Stop() error
	// Release frees engine resources. It is safe to call twice.
	Release() error
}

// DecoderProvider creates decoder engines by codec identifier.
type DecoderProvider interface {
	NewDecoder(codec string) (Decoder, error)
}

// FrameSink owns pixel storage for rendered frames.
type FrameSink interface {
	// Surface returns the render target handed to the decoder.
	Surface() Surface
	// AwaitImage blocks until the most recently released buffer has landed
	// on the surface.
	AwaitImage(ctx context.Context) error
	// Draw renders the landed image into the pixel buffer.
	Draw(flipHorizontal bool) error
	// Pixels returns the current pixel buffer, sized width*height*4. The
	// slice is reused by the next Draw.
	Pixels() ([]byte, error)
	// Release frees the sink. It is safe to call twice.
	Release() error
}

// SinkFactory creates a frame sink sized to a geometry plan.
type SinkFactory interface {
	NewSink(plan GeometryPlan) (FrameSink, error)
}

// Metadata is what a MetadataProber reads from the container.
type Metadata struct {
	DurationMillis int64
	Rotation       int
	RotationKnown  bool
}

// MetadataProber reads container-level rotation and duration.
type MetadataProber interface {
	ProbeMetadata(ctx context.Context, path string) (Metadata, error)
}
