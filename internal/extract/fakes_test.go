package extract

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type eventLog struct {
	events []string
}

func (l *eventLog) add(event string) {
	if l != nil {
		l.events = append(l.events, event)
	}
}

type fakeDemuxer struct {
	log      *eventLog
	tracks   []TrackFormat
	samples  []Sample
	failAt   int
	readErr  error
	cursor   int
	selected int
	closed   int
}

func newFakeDemuxer(log *eventLog, track TrackFormat, chunks int) *fakeDemuxer {
	samples := make([]Sample, chunks)
	for i := range samples {
		samples[i] = Sample{
			TrackID:          track.TrackID,
			Data:             []byte{byte(i), 0xAB},
			PresentationTime: time.Duration(i) * 33 * time.Millisecond,
		}
	}
	return &fakeDemuxer{log: log, tracks: []TrackFormat{track}, samples: samples, failAt: -1, selected: -1}
}

func (d *fakeDemuxer) Tracks() []TrackFormat { return d.tracks }

func (d *fakeDemuxer) SelectTrack(index int) error {
	d.selected = index
	return nil
}

func (d *fakeDemuxer) ReadSample() (Sample, error) {
	if d.failAt >= 0 && d.cursor == d.failAt {
		return Sample{}, d.readErr
	}
	if d.cursor >= len(d.samples) {
		return Sample{}, io.EOF
	}
	return d.samples[d.cursor], nil
}

func (d *fakeDemuxer) Advance() bool {
	d.cursor++
	return d.cursor < len(d.samples)
}

func (d *fakeDemuxer) Close() error {
	d.closed++
	d.log.add("demuxer.close")
	return nil
}

// fakeDecoder emits one rendered buffer per queued chunk and an empty end of
// stream buffer once end of input is queued.
type fakeDecoder struct {
	log       *eventLog
	surface   Surface
	preface   []OutputStatus
	pending   []OutputStatus
	buffers   map[int][]byte
	nextIndex int

	inputMisses  int
	eosQueued    bool
	queued       int
	configureErr error
	configured   TrackFormat
	startErr     error
	stops        int
	releases     int
}

func newFakeDecoder(log *eventLog) *fakeDecoder {
	return &fakeDecoder{log: log, buffers: make(map[int][]byte)}
}

func (d *fakeDecoder) Configure(format TrackFormat, surface Surface) error {
	if d.configureErr != nil {
		return d.configureErr
	}
	d.configured = format
	d.surface = surface
	return nil
}

func (d *fakeDecoder) Start() error { return d.startErr }

func (d *fakeDecoder) DequeueInput(time.Duration) (int, bool) {
	if d.eosQueued {
		return 0, false
	}
	if d.inputMisses > 0 {
		d.inputMisses--
		return 0, false
	}
	return 0, true
}

func (d *fakeDecoder) QueueInput(_ int, data []byte, _ time.Duration, eos bool) error {
	index := d.nextIndex
	d.nextIndex++
	if eos {
		d.eosQueued = true
		d.pending = append(d.pending, OutputStatus{Kind: OutputBuffer, Index: index, EndOfStream: true})
		return nil
	}
	d.queued++
	d.buffers[index] = append([]byte(nil), data...)
	d.pending = append(d.pending, OutputStatus{Kind: OutputBuffer, Index: index, Size: len(data)})
	return nil
}

func (d *fakeDecoder) DequeueOutput(time.Duration) OutputStatus {
	if len(d.preface) > 0 {
		status := d.preface[0]
		d.preface = d.preface[1:]
		return status
	}
	if len(d.pending) > 0 {
		status := d.pending[0]
		d.pending = d.pending[1:]
		return status
	}
	return OutputStatus{Kind: OutputTryAgain}
}

func (d *fakeDecoder) ReleaseOutput(index int, render bool) error {
	data, ok := d.buffers[index]
	delete(d.buffers, index)
	if render && ok && d.surface != nil {
		d.surface.Post(data)
	}
	return nil
}

func (d *fakeDecoder) Stop() error {
	d.stops++
	d.log.add("decoder.stop")
	return nil
}

func (d *fakeDecoder) Release() error {
	d.releases++
	d.log.add("decoder.release")
	return nil
}

type fakeProvider struct {
	decoder *fakeDecoder
	err     error
	codecs  []string
}

func (p *fakeProvider) NewDecoder(codec string) (Decoder, error) {
	p.codecs = append(p.codecs, codec)
	if p.err != nil {
		return nil, p.err
	}
	return p.decoder, nil
}

type fakeSurface struct {
	sink *fakeSink
}

func (s fakeSurface) Size() (int, int) { return s.sink.plan.Width, s.sink.plan.Height }

func (s fakeSurface) Post(image []byte) { s.sink.posted = image }

// fakeSink renders the posted buffer into pixels, optionally failing the
// n-th AwaitImage call (1-based).
type fakeSink struct {
	log       *eventLog
	plan      GeometryPlan
	posted    []byte
	pixels    []byte
	awaits    int
	failAwait map[int]bool
	flips     []bool
	releases  int
}

func (s *fakeSink) Surface() Surface { return fakeSurface{sink: s} }

func (s *fakeSink) AwaitImage(context.Context) error {
	s.awaits++
	if s.failAwait[s.awaits] {
		s.posted = nil
		return errors.New("image timeout")
	}
	if s.posted == nil {
		return errors.New("no image posted")
	}
	return nil
}

func (s *fakeSink) Draw(flip bool) error {
	s.flips = append(s.flips, flip)
	s.pixels = s.posted
	s.posted = nil
	return nil
}

func (s *fakeSink) Pixels() ([]byte, error) { return s.pixels, nil }

func (s *fakeSink) Release() error {
	s.releases++
	s.log.add("sink.release")
	return nil
}

type fakeSinkFactory struct {
	sink  *fakeSink
	err   error
	plans []GeometryPlan
}

func (f *fakeSinkFactory) NewSink(plan GeometryPlan) (FrameSink, error) {
	f.plans = append(f.plans, plan)
	if f.err != nil {
		return nil, f.err
	}
	f.sink.plan = plan
	return f.sink, nil
}

type fakeProber struct {
	meta Metadata
	err  error
}

func (p fakeProber) ProbeMetadata(context.Context, string) (Metadata, error) {
	return p.meta, p.err
}

type recordingListener struct {
	frames      []Frame
	completions []Result
	order       []string
	onFrame     func(Frame)
}

func (l *recordingListener) FrameExtracted(frame Frame) {
	frame.Pixels = append([]byte(nil), frame.Pixels...)
	l.frames = append(l.frames, frame)
	l.order = append(l.order, "frame")
	if l.onFrame != nil {
		l.onFrame(frame)
	}
}

func (l *recordingListener) ExtractionComplete(result Result) {
	l.completions = append(l.completions, result)
	l.order = append(l.order, "complete")
}

func (l *recordingListener) assertCompletedOnceLast(t *testing.T) Result {
	t.Helper()
	if len(l.completions) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(l.completions))
	}
	if l.order[len(l.order)-1] != "complete" {
		t.Fatalf("completion was not the final callback: %v", l.order)
	}
	return l.completions[0]
}

func (l *recordingListener) assertContiguous(t *testing.T) {
	t.Helper()
	for i, frame := range l.frames {
		if frame.Index != i {
			t.Fatalf("frame %d delivered with index %d", i, frame.Index)
		}
	}
}

func writeSourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not inspected by fakes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

var testVideoTrack = TrackFormat{Index: 0, TrackID: 1, Codec: "video/avc", Width: 4000, Height: 3000}
