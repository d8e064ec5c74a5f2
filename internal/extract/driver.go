package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"framex/internal/logging"
)

// DefaultPollTimeout bounds every decoder poll made by the driver.
const DefaultPollTimeout = 10 * time.Millisecond

// DriverConfig parameterizes a Driver.
type DriverConfig struct {
	Track       TrackFormat
	Plan        GeometryPlan
	FrameBudget int
	PollTimeout time.Duration
	// Cancel is the cooperative cancellation flag. It may be shared with
	// other goroutines; the driver only reads it.
	Cancel *atomic.Bool
}

// Driver runs the feed/drain loop between a demuxer, a decoder engine and a
// frame sink. A Driver runs once.
type Driver struct {
	demuxer  Demuxer
	decoder  Decoder
	sink     FrameSink
	listener Listener
	logger   *slog.Logger

	track       TrackFormat
	plan        GeometryPlan
	budget      int
	pollTimeout time.Duration
	cancelled   *atomic.Bool
	now         func() time.Time
}

// pipelineState is owned by the goroutine executing Run.
type pipelineState struct {
	inputDone  bool
	outputDone bool
	decoded    int
	submitted  int
	result     Result
}

// NewDriver wires a driver around already configured collaborators.
func NewDriver(demuxer Demuxer, decoder Decoder, sink FrameSink, listener Listener, cfg DriverConfig, logger *slog.Logger) *Driver {
	if listener == nil {
		listener = ListenerFuncs{}
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	budget := cfg.FrameBudget
	if budget < 0 {
		budget = 0
	}
	cancelled := cfg.Cancel
	if cancelled == nil {
		cancelled = new(atomic.Bool)
	}
	return &Driver{
		demuxer:     demuxer,
		decoder:     decoder,
		sink:        sink,
		listener:    listener,
		logger:      logging.NewComponentLogger(logger, "driver"),
		track:       cfg.Track,
		plan:        cfg.Plan,
		budget:      budget,
		pollTimeout: pollTimeout,
		cancelled:   cancelled,
		now:         time.Now,
	}
}

// Cancel requests cooperative termination. The loop observes it at the top
// of its next iteration.
func (d *Driver) Cancel() {
	d.cancelled.Store(true)
}

// Run executes the loop until the decoder reports end of stream or
// cancellation is observed, then reports completion to the listener exactly
// once.
func (d *Driver) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	var st pipelineState

	for !st.outputDone {
		if d.cancelRequested(ctx) {
			st.result.Cancelled = true
			break
		}
		if !st.inputDone {
			d.feed(&st)
		}
		d.drain(ctx, &st)
	}

	result := st.result
	result.Decoded = st.decoded
	result.Submitted = st.submitted
	result.Delivered = min(d.budget, st.decoded)

	d.logger.Debug("extraction loop finished",
		logging.Int("delivered", result.Delivered),
		logging.Int("decoded", result.Decoded),
		logging.Int("submitted", result.Submitted),
		logging.Int("dropped", result.Dropped),
		logging.Bool("cancelled", result.Cancelled),
		logging.Duration("delivery_time", result.Elapsed),
	)
	d.listener.ExtractionComplete(result)
	return result
}

func (d *Driver) cancelRequested(ctx context.Context) bool {
	return d.cancelled.Load() || ctx.Err() != nil
}

func (d *Driver) feed(st *pipelineState) {
	slot, ok := d.decoder.DequeueInput(d.pollTimeout)
	if !ok {
		return
	}

	sample, err := d.demuxer.ReadSample()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logging.WarnWithContext(d.logger, "demuxer read failed; ending input", "demux_read_failed",
				logging.Error(err),
				logging.Int("submitted", st.submitted),
				logging.String(logging.FieldImpact, "remaining samples are skipped"),
			)
		}
		if err := d.decoder.QueueInput(slot, nil, 0, true); err != nil {
			st.result.DecoderErrors++
			d.logger.Debug("queue end-of-stream failed", logging.Error(err))
		}
		st.inputDone = true
		d.logger.Debug("sent input end-of-stream", logging.Int("submitted", st.submitted))
		return
	}

	if sample.TrackID != d.track.TrackID {
		st.result.TrackMismatches++
		logging.WarnWithContext(d.logger, "sample from unexpected track", "track_mismatch",
			logging.Int("got_track", sample.TrackID),
			logging.Int("want_track", d.track.TrackID),
			logging.String(logging.FieldImpact, "sample is decoded anyway"),
		)
	}
	if err := d.decoder.QueueInput(slot, sample.Data, sample.PresentationTime, false); err != nil {
		st.result.DecoderErrors++
		d.logger.Debug("queue input failed", logging.Int("chunk", st.submitted), logging.Error(err))
	}
	st.submitted++
	d.demuxer.Advance()
}

func (d *Driver) drain(ctx context.Context, st *pipelineState) {
	status := d.decoder.DequeueOutput(d.pollTimeout)
	switch status.Kind {
	case OutputTryAgain:
	case OutputFormatChanged, OutputBuffersChanged:
		d.logger.Debug("decoder output changed", logging.String("status", status.Kind.String()))
	case OutputBuffer:
		d.handleBuffer(ctx, st, status)
	default:
		st.result.DecoderErrors++
		d.logger.Debug("unexpected decoder status; continuing",
			logging.String("status", status.Kind.String()),
			logging.Int("code", status.Code),
		)
	}
}

func (d *Driver) handleBuffer(ctx context.Context, st *pipelineState, status OutputStatus) {
	if status.EndOfStream {
		st.outputDone = true
		d.logger.Debug("output end-of-stream", logging.Int("decoded", st.decoded))
	}
	render := status.Size != 0
	if err := d.decoder.ReleaseOutput(status.Index, render); err != nil {
		st.result.DecoderErrors++
		if render {
			d.drop(st, "release output failed", err)
			return
		}
		d.logger.Debug("release output failed", logging.Int("buffer", status.Index), logging.Error(err))
	}
	if !render {
		return
	}

	if err := d.sink.AwaitImage(ctx); err != nil {
		d.drop(st, "frame did not reach the sink", err)
		return
	}
	if err := d.sink.Draw(!d.plan.Portrait); err != nil {
		d.drop(st, "frame draw failed", err)
		return
	}

	if st.decoded < d.budget {
		start := d.now()
		pixels, err := d.sink.Pixels()
		if err != nil {
			d.drop(st, "frame pixels unavailable", err)
			return
		}
		d.listener.FrameExtracted(Frame{
			Index:  st.decoded,
			Width:  d.plan.Width,
			Height: d.plan.Height,
			Pixels: pixels,
			Budget: d.budget,
		})
		st.result.Elapsed += d.now().Sub(start)
	}
	st.decoded++
}

func (d *Driver) drop(st *pipelineState, msg string, err error) {
	st.result.Dropped++
	logging.WarnWithContext(d.logger, msg, "frame_dropped",
		logging.Error(err),
		logging.Int("decoded", st.decoded),
		logging.String(logging.FieldImpact, "frame skipped; later frames keep contiguous indices"),
	)
}
