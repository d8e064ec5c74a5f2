package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"framex/internal/extract"
	"framex/internal/media/mp4"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show tracks and the planned output geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			source, err := extract.Probe(cmd.Context(), metadataProber(cfg), path)
			if err != nil {
				return err
			}
			demuxer, err := mp4.Open(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("%w: %v", extract.ErrSourceUnreadable, err)
			}
			defer demuxer.Close()
			tracks := demuxer.Tracks()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:   %s\n", source.Path)
			fmt.Fprintf(out, "Duration: %s\n", formatDurationMillis(source.DurationMillis))
			fmt.Fprintf(out, "Rotation: %d°\n", source.Rotation)
			fmt.Fprintln(out, renderTable("", trackHeaders(), trackRows(tracks), trackAligns()))

			track, err := extract.SelectVideoTrack(tracks)
			if err != nil {
				return err
			}
			plan, err := extract.PlanGeometry(track.Width, track.Height, source.Rotation, cfg.Extraction.MaxResolution)
			if err != nil {
				return err
			}
			budget := extract.FrameBudget(source.DurationMillis, cfg.Extraction.SamplingRate, cfg.Extraction.FrameBudget)
			fmt.Fprintf(out, "Selected: track #%d (%s)\n", track.Index, track.Codec)
			fmt.Fprintf(out, "Output:   %dx%d (portrait: %s)\n", plan.Width, plan.Height, yesNo(plan.Portrait))
			fmt.Fprintf(out, "Budget:   %s frames\n", formatBudget(budget))
			return nil
		},
	}
}

func trackHeaders() []string {
	return []string{"#", "Track ID", "Codec", "Width", "Height", "Video"}
}

func trackAligns() []columnAlignment {
	return []columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft}
}

func trackRows(tracks []extract.TrackFormat) [][]string {
	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		rows = append(rows, []string{
			strconv.Itoa(track.Index),
			strconv.Itoa(track.TrackID),
			track.Codec,
			strconv.Itoa(track.Width),
			strconv.Itoa(track.Height),
			yesNo(track.IsVideo()),
		})
	}
	return rows
}
