package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"framex/internal/extract"
)

const (
	exitFailure     = 1
	exitInputError  = 2
	exitInterrupted = 130
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err and returns the process exit status for it.
// Unreadable or undecodable inputs exit 2 so scripts can skip the file.
func reportError(w io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	fmt.Fprintf(w, "framex: %v\n", err)
	switch {
	case errors.Is(err, extract.ErrSourceUnreadable),
		errors.Is(err, extract.ErrNoVideoTrack),
		errors.Is(err, extract.ErrInvalidTrackFormat),
		errors.Is(err, extract.ErrDecoderUnavailable):
		return exitInputError
	default:
		return exitFailure
	}
}
