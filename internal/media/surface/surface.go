// Package surface implements an in-memory RGBA frame sink.
//
// A decoder posts rendered images to the sink's Surface; the extraction
// loop then waits for the image, draws it into the sink's pixel buffer and
// reads the pixels back. Only the most recent posted image is kept.
package surface

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"framex/internal/extract"
)

// DefaultImageTimeout bounds AwaitImage when the factory sets none.
const DefaultImageTimeout = 2500 * time.Millisecond

var (
	// ErrImageTimeout is returned when no image lands within the timeout.
	ErrImageTimeout = errors.New("timed out waiting for image")
	// ErrReleased is returned by operations on a released sink.
	ErrReleased = errors.New("sink released")
	// ErrNoImage is returned by Draw before any image has landed.
	ErrNoImage = errors.New("no image available")
)

// Factory creates sinks for extraction sessions.
type Factory struct {
	ImageTimeout time.Duration
}

// NewSink implements extract.SinkFactory.
func (f Factory) NewSink(plan extract.GeometryPlan) (extract.FrameSink, error) {
	return New(plan.Width, plan.Height, f.ImageTimeout)
}

// Sink is a software FrameSink backed by an RGBA byte slice.
type Sink struct {
	width   int
	height  int
	timeout time.Duration

	images chan []byte
	landed []byte
	pixels []byte

	mu       sync.Mutex
	released bool
}

// New returns a sink for width x height RGBA frames.
func New(width, height int, timeout time.Duration) (*Sink, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("surface: invalid size %dx%d", width, height)
	}
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	return &Sink{
		width:   width,
		height:  height,
		timeout: timeout,
		images:  make(chan []byte, 1),
		pixels:  make([]byte, width*height*4),
	}, nil
}

// Surface implements extract.FrameSink.
func (s *Sink) Surface() extract.Surface {
	return (*target)(s)
}

// AwaitImage implements extract.FrameSink.
func (s *Sink) AwaitImage(ctx context.Context) error {
	if s.isReleased() {
		return ErrReleased
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case image := <-s.images:
		s.landed = image
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrImageTimeout
	}
}

// Draw implements extract.FrameSink. With flipHorizontal set, each row is
// mirrored left to right.
func (s *Sink) Draw(flipHorizontal bool) error {
	if s.isReleased() {
		return ErrReleased
	}
	if s.landed == nil {
		return ErrNoImage
	}
	if len(s.landed) != len(s.pixels) {
		return fmt.Errorf("surface: image of %d bytes does not fit %dx%d", len(s.landed), s.width, s.height)
	}
	if !flipHorizontal {
		copy(s.pixels, s.landed)
		return nil
	}
	stride := s.width * 4
	for y := 0; y < s.height; y++ {
		row := y * stride
		for x := 0; x < s.width; x++ {
			src := row + x*4
			dst := row + (s.width-1-x)*4
			copy(s.pixels[dst:dst+4], s.landed[src:src+4])
		}
	}
	return nil
}

// Pixels implements extract.FrameSink.
func (s *Sink) Pixels() ([]byte, error) {
	if s.isReleased() {
		return nil, ErrReleased
	}
	return s.pixels, nil
}

// Release implements extract.FrameSink.
func (s *Sink) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	select {
	case <-s.images:
	default:
	}
	s.landed = nil
	return nil
}

func (s *Sink) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// target is the decoder-facing view of a Sink.
type target Sink

func (t *target) Size() (int, int) {
	return t.width, t.height
}

// Post replaces any pending image. Images posted after release are dropped.
func (t *target) Post(image []byte) {
	owned := append([]byte(nil), image...)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	select {
	case <-t.images:
	default:
	}
	t.images <- owned
}
