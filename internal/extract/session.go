package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"framex/internal/logging"
)

// Options supplies a Session with its collaborators and limits.
type Options struct {
	Prober      MetadataProber
	OpenDemuxer DemuxerOpener
	Decoders    DecoderProvider
	Sinks       SinkFactory
	Logger      *slog.Logger

	// MaxResolution caps the longer planned side. Zero uses
	// DefaultMaxResolution.
	MaxResolution int
	// SamplingRate derives the frame budget from duration. Zero uses
	// DefaultSamplingRate.
	SamplingRate int
	// FrameBudget, when positive, replaces the derived budget.
	FrameBudget int
	// PollTimeout bounds each decoder poll. Zero uses DefaultPollTimeout.
	PollTimeout time.Duration
}

// Session sequences one extraction and owns its demuxer, decoder and sink
// for the duration of Extract.
type Session struct {
	opts      Options
	logger    *slog.Logger
	cancelled atomic.Bool
	started   atomic.Bool
}

var errSessionReused = errors.New("extraction session already used")

// NewSession constructs a session. A Session runs a single extraction.
func NewSession(opts Options) *Session {
	return &Session{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "extract"),
	}
}

// Cancel requests cooperative cancellation. It is safe to call from any
// goroutine, before or during Extract.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Extract probes path, plans geometry, builds the decoder and sink, and runs
// the driver loop. Fatal errors are returned before any listener call. Once
// the loop starts, Extract returns a nil error and the listener receives its
// completion call.
func (s *Session) Extract(ctx context.Context, path string, listener Listener) (Report, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Report{}, errSessionReused
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := s.logger.With(logging.String("path", path))
	var report Report

	source, err := Probe(ctx, s.opts.Prober, path)
	if err != nil {
		return report, err
	}
	report.Source = source

	if s.opts.OpenDemuxer == nil {
		return report, fmt.Errorf("%w: no demuxer configured", ErrSourceUnreadable)
	}
	demuxer, err := s.opts.OpenDemuxer(ctx, path)
	if err != nil {
		return report, fmt.Errorf("%w: open %s: %v", ErrSourceUnreadable, path, err)
	}
	defer closeDemuxer(logger, demuxer)

	track, err := SelectVideoTrack(demuxer.Tracks())
	if err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}
	track.Rotation = source.Rotation
	report.Track = track
	if err := demuxer.SelectTrack(track.Index); err != nil {
		return report, fmt.Errorf("%w: select track %d: %v", ErrSourceUnreadable, track.Index, err)
	}

	plan, err := PlanGeometry(track.Width, track.Height, source.Rotation, s.opts.MaxResolution)
	if err != nil {
		return report, err
	}
	report.Plan = plan
	report.FrameBudget = FrameBudget(source.DurationMillis, s.opts.SamplingRate, s.opts.FrameBudget)
	if report.FrameBudget == UnboundedBudget {
		logging.WarnWithContext(logger, "source duration unknown; frame budget unbounded", "duration_unknown",
			logging.String(logging.FieldImpact, "every decoded frame is delivered"),
			logging.String(logging.FieldErrorHint, "pass an explicit frame count to bound extraction"),
		)
	}

	if s.opts.Decoders == nil {
		return report, fmt.Errorf("%w: no decoder provider configured", ErrDecoderUnavailable)
	}
	decoder, err := s.opts.Decoders.NewDecoder(track.Codec)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %v", ErrDecoderUnavailable, track.Codec, err)
	}
	defer releaseDecoder(logger, decoder)

	if s.opts.Sinks == nil {
		return report, fmt.Errorf("%w: no sink factory configured", ErrSinkUnavailable)
	}
	sink, err := s.opts.Sinks.NewSink(plan)
	if err != nil {
		return report, fmt.Errorf("%w: %dx%d: %v", ErrSinkUnavailable, plan.Width, plan.Height, err)
	}
	defer releaseSink(logger, sink)

	if err := decoder.Configure(track, sink.Surface()); err != nil {
		return report, fmt.Errorf("%w: configure %s: %v", ErrDecoderUnavailable, track.Codec, err)
	}
	if err := decoder.Start(); err != nil {
		return report, fmt.Errorf("%w: start %s: %v", ErrDecoderUnavailable, track.Codec, err)
	}

	logger.Info("extraction started",
		logging.String("codec", track.Codec),
		logging.Int("native_width", track.Width),
		logging.Int("native_height", track.Height),
		logging.Int("rotation", source.Rotation),
		logging.Int("width", plan.Width),
		logging.Int("height", plan.Height),
		logging.Bool("portrait", plan.Portrait),
		logging.Int("frame_budget", report.FrameBudget),
	)

	driver := NewDriver(demuxer, decoder, sink, listener, DriverConfig{
		Track:       track,
		Plan:        plan,
		FrameBudget: report.FrameBudget,
		PollTimeout: s.opts.PollTimeout,
		Cancel:      &s.cancelled,
	}, s.opts.Logger)
	report.Result = driver.Run(ctx)
	return report, nil
}

func closeDemuxer(logger *slog.Logger, demuxer Demuxer) {
	if demuxer == nil {
		return
	}
	if err := demuxer.Close(); err != nil {
		logger.Debug("close demuxer", logging.Error(err))
	}
}

func releaseDecoder(logger *slog.Logger, decoder Decoder) {
	if decoder == nil {
		return
	}
	if err := decoder.Stop(); err != nil {
		logger.Debug("stop decoder", logging.Error(err))
	}
	if err := decoder.Release(); err != nil {
		logger.Debug("release decoder", logging.Error(err))
	}
}

func releaseSink(logger *slog.Logger, sink FrameSink) {
	if sink == nil {
		return
	}
	if err := sink.Release(); err != nil {
		logger.Debug("release sink", logging.Error(err))
	}
}
