package extract

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
)

type sessionHarness struct {
	log      *eventLog
	demuxer  *fakeDemuxer
	decoder  *fakeDecoder
	provider *fakeProvider
	sinks    *fakeSinkFactory
	prober   fakeProber
	openErr  error
	opened   int
	listener *recordingListener
}

func newSessionHarness(chunks int) *sessionHarness {
	log := &eventLog{}
	decoder := newFakeDecoder(log)
	h := &sessionHarness{
		log:      log,
		demuxer:  newFakeDemuxer(log, testVideoTrack, chunks),
		decoder:  decoder,
		provider: &fakeProvider{decoder: decoder},
		sinks:    &fakeSinkFactory{sink: &fakeSink{log: log}},
		prober:   fakeProber{meta: Metadata{DurationMillis: 1000, Rotation: 0, RotationKnown: true}},
		listener: &recordingListener{},
	}
	return h
}

func (h *sessionHarness) session(override func(*Options)) *Session {
	opts := Options{
		Prober: h.prober,
		OpenDemuxer: func(context.Context, string) (Demuxer, error) {
			h.opened++
			if h.openErr != nil {
				return nil, h.openErr
			}
			return h.demuxer, nil
		},
		Decoders: h.provider,
		Sinks:    h.sinks,
	}
	if override != nil {
		override(&opts)
	}
	return NewSession(opts)
}

func TestExtractReportsPlanAndBudget(t *testing.T) {
	h := newSessionHarness(80)
	report, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if report.Plan != (GeometryPlan{Width: 2000, Height: 1500}) {
		t.Fatalf("unexpected plan: %+v", report.Plan)
	}
	if report.FrameBudget != 60 {
		t.Fatalf("expected budget 60 for one second at 60fps, got %d", report.FrameBudget)
	}
	if report.Result.Delivered != 60 || len(h.listener.frames) != 60 {
		t.Fatalf("expected 60 delivered frames, got %+v", report.Result)
	}
	if report.Source.Rotation != 0 || report.Track.TrackID != 1 {
		t.Fatalf("unexpected source/track: %+v %+v", report.Source, report.Track)
	}
	if h.demuxer.selected != 0 {
		t.Fatalf("expected track 0 selected, got %d", h.demuxer.selected)
	}
	if !slices.Equal(h.provider.codecs, []string{"video/avc"}) {
		t.Fatalf("unexpected codec requests: %v", h.provider.codecs)
	}
	h.listener.assertCompletedOnceLast(t)
}

func TestExtractTeardownOrder(t *testing.T) {
	h := newSessionHarness(3)
	if _, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []string{"sink.release", "decoder.stop", "decoder.release", "demuxer.close"}
	if !slices.Equal(h.log.events, want) {
		t.Fatalf("unexpected teardown order: got %v want %v", h.log.events, want)
	}
}

func TestExtractMissingRotationDefaultsToPortrait(t *testing.T) {
	h := newSessionHarness(3)
	h.demuxer.tracks[0].Width = 1920
	h.demuxer.tracks[0].Height = 1080
	h.prober = fakeProber{meta: Metadata{DurationMillis: 50}}
	report, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if report.Source.Rotation != DefaultRotation {
		t.Fatalf("expected default rotation %d, got %d", DefaultRotation, report.Source.Rotation)
	}
	if report.Plan != (GeometryPlan{Width: 1080, Height: 1920, Portrait: true}) {
		t.Fatalf("unexpected plan: %+v", report.Plan)
	}
	if h.decoder.configured.Rotation != DefaultRotation {
		t.Fatalf("expected decoder configured with rotation %d, got %+v", DefaultRotation, h.decoder.configured)
	}
	if report.FrameBudget != 3 {
		t.Fatalf("expected ceil(60*0.05)=3, got %d", report.FrameBudget)
	}
	if len(h.sinks.plans) != 1 || h.sinks.plans[0] != report.Plan {
		t.Fatalf("sink not sized to plan: %+v", h.sinks.plans)
	}
}

func TestExtractExplicitBudgetAndUnknownDuration(t *testing.T) {
	h := newSessionHarness(10)
	h.prober = fakeProber{meta: Metadata{RotationKnown: true}}
	report, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if report.FrameBudget != UnboundedBudget || report.Result.Delivered != 10 {
		t.Fatalf("expected unbounded delivery of every frame, got %+v", report)
	}

	h = newSessionHarness(10)
	report, err = h.session(func(o *Options) { o.FrameBudget = 4 }).Extract(context.Background(), writeSourceFile(t), h.listener)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if report.FrameBudget != 4 || report.Result.Delivered != 4 {
		t.Fatalf("expected explicit budget of 4, got %+v", report)
	}
}

func TestExtractUnreadablePath(t *testing.T) {
	h := newSessionHarness(3)
	missing := filepath.Join(t.TempDir(), "missing.mp4")
	_, err := h.session(nil).Extract(context.Background(), missing, h.listener)
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
	if h.opened != 0 || len(h.listener.order) != 0 {
		t.Fatalf("expected nothing opened or delivered: opened=%d order=%v", h.opened, h.listener.order)
	}
}

func TestExtractProbeFailure(t *testing.T) {
	h := newSessionHarness(3)
	h.prober = fakeProber{err: errors.New("moov atom not found")}
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
}

func TestExtractOpenFailure(t *testing.T) {
	h := newSessionHarness(3)
	h.openErr = errors.New("permission denied")
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("expected ErrSourceUnreadable, got %v", err)
	}
	if len(h.provider.codecs) != 0 {
		t.Fatal("decoder must not be requested when the demuxer fails")
	}
}

func TestExtractNoVideoTrack(t *testing.T) {
	h := newSessionHarness(3)
	h.demuxer.tracks = []TrackFormat{
		{Index: 0, TrackID: 1, Codec: "audio/mp4a-latm"},
		{Index: 1, TrackID: 2, Codec: "text/tx3g"},
	}
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrNoVideoTrack) {
		t.Fatalf("expected ErrNoVideoTrack, got %v", err)
	}
	if h.demuxer.closed != 1 {
		t.Fatalf("expected demuxer closed once, got %d", h.demuxer.closed)
	}
	if len(h.listener.order) != 0 {
		t.Fatalf("listener must not be called on fatal error: %v", h.listener.order)
	}
}

func TestExtractDecoderUnavailable(t *testing.T) {
	h := newSessionHarness(3)
	h.provider.err = errors.New("no codec for video/avc")
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrDecoderUnavailable) {
		t.Fatalf("expected ErrDecoderUnavailable, got %v", err)
	}
	if len(h.sinks.plans) != 0 {
		t.Fatal("sink must not be created without a decoder")
	}
	if !slices.Equal(h.log.events, []string{"demuxer.close"}) {
		t.Fatalf("unexpected teardown: %v", h.log.events)
	}
}

func TestExtractSinkUnavailable(t *testing.T) {
	h := newSessionHarness(3)
	h.sinks.err = errors.New("out of memory")
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("expected ErrSinkUnavailable, got %v", err)
	}
	want := []string{"decoder.stop", "decoder.release", "demuxer.close"}
	if !slices.Equal(h.log.events, want) {
		t.Fatalf("unexpected teardown: got %v want %v", h.log.events, want)
	}
}

func TestExtractConfigureFailure(t *testing.T) {
	h := newSessionHarness(3)
	h.decoder.configureErr = errors.New("unsupported profile")
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrDecoderUnavailable) {
		t.Fatalf("expected ErrDecoderUnavailable, got %v", err)
	}
	want := []string{"sink.release", "decoder.stop", "decoder.release", "demuxer.close"}
	if !slices.Equal(h.log.events, want) {
		t.Fatalf("unexpected teardown: got %v want %v", h.log.events, want)
	}
}

func TestExtractInvalidTrackFormat(t *testing.T) {
	h := newSessionHarness(3)
	h.demuxer.tracks[0].Width = 0
	_, err := h.session(nil).Extract(context.Background(), writeSourceFile(t), h.listener)
	if !errors.Is(err, ErrInvalidTrackFormat) {
		t.Fatalf("expected ErrInvalidTrackFormat, got %v", err)
	}
}

func TestSessionCancelBeforeExtract(t *testing.T) {
	h := newSessionHarness(5)
	session := h.session(nil)
	session.Cancel()
	report, err := session.Extract(context.Background(), writeSourceFile(t), h.listener)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !report.Result.Cancelled || report.Result.Delivered != 0 {
		t.Fatalf("expected cancelled empty result, got %+v", report.Result)
	}
	h.listener.assertCompletedOnceLast(t)
}

func TestSessionCancelFromListener(t *testing.T) {
	h := newSessionHarness(30)
	session := h.session(nil)
	h.listener.onFrame = func(frame Frame) {
		if frame.Index == 4 {
			session.Cancel()
		}
	}
	report, err := session.Extract(context.Background(), writeSourceFile(t), h.listener)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !report.Result.Cancelled || len(h.listener.frames) != 5 {
		t.Fatalf("expected cancellation after 5 frames, got %d (%+v)", len(h.listener.frames), report.Result)
	}
	if h.decoder.releases != 1 || h.sinks.sink.releases != 1 || h.demuxer.closed != 1 {
		t.Fatal("expected every collaborator released exactly once after cancel")
	}
}

func TestSessionIsSingleUse(t *testing.T) {
	h := newSessionHarness(1)
	session := h.session(nil)
	path := writeSourceFile(t)
	if _, err := session.Extract(context.Background(), path, h.listener); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := session.Extract(context.Background(), path, h.listener); !errors.Is(err, errSessionReused) {
		t.Fatalf("expected errSessionReused, got %v", err)
	}
}
