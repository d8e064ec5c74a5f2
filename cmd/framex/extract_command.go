package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"framex/internal/config"
	"framex/internal/extract"
	"framex/internal/history"
	"framex/internal/logging"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var frames int
	var progress bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Decode frames from a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frames < 0 {
				return errors.New("--frames must be zero or positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			sessionID := uuid.NewString()
			logger = logging.WithSession(logger, sessionID)

			opts := sessionOptions(cfg, logger)
			if frames > 0 {
				opts.FrameBudget = frames
			}
			session := extract.NewSession(opts)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-runCtx.Done()
				session.Cancel()
			}()

			listener := &extractListener{
				logger:   logging.NewComponentLogger(logger, "cli"),
				progress: progress,
				sampler:  logging.NewProgressSampler(10),
			}

			startedAt := time.Now()
			report, extractErr := session.Extract(runCtx, args[0], listener)
			recordHistory(cmd.Context(), cfg, logger, history.Entry{
				ID:        sessionID,
				StartedAt: startedAt,
				Elapsed:   time.Since(startedAt),
			}, args[0], report, extractErr)
			if extractErr != nil {
				return extractErr
			}

			printExtractionSummary(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 0, "Deliver at most this many frames (0 derives from duration)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Log progress every 10% of the frame budget")
	return cmd
}

// extractListener logs sampled progress and the completion summary.
type extractListener struct {
	logger   *slog.Logger
	progress bool
	sampler  *logging.ProgressSampler
	frames   int
}

func (l *extractListener) FrameExtracted(frame extract.Frame) {
	l.frames++
	if !l.progress {
		return
	}
	total := frame.Budget
	if total == extract.UnboundedBudget {
		total = 0
	}
	done := frame.Index + 1
	if l.sampler.ShouldLog(done, total) {
		l.logger.Info("extraction progress",
			logging.Int("frames", done),
			logging.Int("budget", total),
			logging.Float64("percent", logging.Percent(done, total)),
		)
	}
}

func (l *extractListener) ExtractionComplete(result extract.Result) {
	l.logger.Info("extraction complete",
		logging.Int("delivered", result.Delivered),
		logging.Int("decoded", result.Decoded),
		logging.Int("dropped", result.Dropped),
		logging.Bool("cancelled", result.Cancelled),
		logging.Duration("delivery_time", result.Elapsed),
	)
}

func recordHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, entry history.Entry, path string, report extract.Report, extractErr error) {
	if !cfg.History.Enabled {
		return
	}
	entry.SourcePath = path
	entry.Codec = report.Track.Codec
	entry.Width = report.Plan.Width
	entry.Height = report.Plan.Height
	entry.Rotation = report.Source.Rotation
	entry.DurationMs = report.Source.DurationMillis
	entry.FrameBudget = report.FrameBudget
	entry.Delivered = report.Result.Delivered
	entry.Decoded = report.Result.Decoded
	entry.Dropped = report.Result.Dropped
	switch {
	case extractErr != nil:
		entry.Status = history.StatusFailed
		entry.Error = extractErr.Error()
	case report.Result.Cancelled:
		entry.Status = history.StatusCancelled
	default:
		entry.Status = history.StatusCompleted
	}

	store, err := history.OpenFromConfig(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "session not recorded"),
		)
		return
	}
	defer store.Close()
	if err := store.Record(ctx, &entry); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "session not recorded"),
		)
	}
}
