package main

import (
	"log/slog"

	"framex/internal/config"
	"framex/internal/extract"
	"framex/internal/media/ffmpeg"
	"framex/internal/media/ffprobe"
	"framex/internal/media/mp4"
	"framex/internal/media/surface"
)

// metadataProber returns the prober selected by engines.prober.
func metadataProber(cfg *config.Config) extract.MetadataProber {
	if cfg.Engines.Prober == config.ProberMP4 {
		return mp4.Prober{}
	}
	return ffprobe.Prober{Binary: cfg.Engines.FFprobeBinary}
}

func sessionOptions(cfg *config.Config, logger *slog.Logger) extract.Options {
	return extract.Options{
		Prober:      metadataProber(cfg),
		OpenDemuxer: mp4.OpenDemuxer,
		Decoders: ffmpeg.Provider{
			Binary:     cfg.Engines.FFmpegBinary,
			InputSlots: cfg.Engines.InputSlots,
			Logger:     logger,
		},
		Sinks:         surface.Factory{ImageTimeout: cfg.ImageTimeout()},
		Logger:        logger,
		MaxResolution: cfg.Extraction.MaxResolution,
		SamplingRate:  cfg.Extraction.SamplingRate,
		FrameBudget:   cfg.Extraction.FrameBudget,
		PollTimeout:   cfg.PollTimeout(),
	}
}
