package extract

import (
	"strings"
	"time"
)

// SourceDescriptor captures container-level metadata for a probed file.
type SourceDescriptor struct {
	Path           string
	DurationMillis int64
	Rotation       int
}

// TrackFormat describes a single demuxed track.
type TrackFormat struct {
	// Index is the track position in container order.
	Index int
	// TrackID is the container's own track identifier.
	TrackID int
	// Codec is a mime-like identifier such as "video/avc".
	Codec  string
	Width  int
	Height int
	// Rotation is the clockwise display rotation of the source. The session
	// sets it before configuring the decoder; demuxers leave it zero.
	Rotation int
}

// IsVideo reports whether the track carries video.
func (t TrackFormat) IsVideo() bool {
	return strings.HasPrefix(strings.ToLower(t.Codec), "video/")
}

// GeometryPlan is the resolved output size used to configure decoding and
// rendering. It is computed once per session.
type GeometryPlan struct {
	Width    int
	Height   int
	Portrait bool
}

// Area returns Width*Height.
func (g GeometryPlan) Area() int {
	return g.Width * g.Height
}

// Frame is one delivered frame. Pixels belongs to the sink and is only valid
// for the duration of the FrameExtracted call.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pixels []byte
	Budget int
}

// Result summarizes a completed extraction loop.
type Result struct {
	Delivered       int
	Decoded         int
	Submitted       int
	Dropped         int
	TrackMismatches int
	DecoderErrors   int
	// Elapsed accumulates the wall-clock time spent pulling pixels and
	// delivering frames to the listener.
	Elapsed   time.Duration
	Cancelled bool
}

// Report is returned by Session.Extract and describes everything the session
// resolved along the way.
type Report struct {
	Source      SourceDescriptor
	Track       TrackFormat
	Plan        GeometryPlan
	FrameBudget int
	Result      Result
}

// Listener receives extracted frames followed by exactly one completion call.
type Listener interface {
	FrameExtracted(frame Frame)
	ExtractionComplete(result Result)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnFrame    func(Frame)
	OnComplete func(Result)
}

func (l ListenerFuncs) FrameExtracted(frame Frame) {
	if l.OnFrame != nil {
		l.OnFrame(frame)
	}
}

func (l ListenerFuncs) ExtractionComplete(result Result) {
	if l.OnComplete != nil {
		l.OnComplete(result)
	}
}
