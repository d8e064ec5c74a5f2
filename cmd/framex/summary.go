package main

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"framex/internal/extract"
)

var printer = message.NewPrinter(language.English)

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

func formatBudget(budget int) string {
	if budget == extract.UnboundedBudget {
		return "unbounded"
	}
	return formatCount(budget)
}

func formatDurationMillis(ms int64) string {
	if ms <= 0 {
		return "unknown"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}

func printExtractionSummary(w io.Writer, report extract.Report) {
	result := report.Result
	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(w, "Extraction %s: %s\n", status, report.Source.Path)
	fmt.Fprintf(w, "  Track:      #%d %s %dx%d\n", report.Track.Index, report.Track.Codec, report.Track.Width, report.Track.Height)
	fmt.Fprintf(w, "  Rotation:   %d°\n", report.Source.Rotation)
	fmt.Fprintf(w, "  Output:     %dx%d (portrait: %s)\n", report.Plan.Width, report.Plan.Height, yesNo(report.Plan.Portrait))
	fmt.Fprintf(w, "  Duration:   %s\n", formatDurationMillis(report.Source.DurationMillis))
	fmt.Fprintf(w, "  Budget:     %s\n", formatBudget(report.FrameBudget))
	fmt.Fprintf(w, "  Delivered:  %s of %s decoded\n", formatCount(result.Delivered), formatCount(result.Decoded))
	if result.Dropped > 0 {
		fmt.Fprintf(w, "  Dropped:    %s\n", formatCount(result.Dropped))
	}
	if result.DecoderErrors > 0 {
		fmt.Fprintf(w, "  Decoder errors: %s\n", formatCount(result.DecoderErrors))
	}
	fmt.Fprintf(w, "  Delivery:   %s\n", result.Elapsed.Round(time.Millisecond))
}
