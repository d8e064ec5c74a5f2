package ffmpeg

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"framex/internal/extract"
	"framex/internal/logging"
)

// DefaultInputSlots is the number of input slots when none is configured.
const DefaultInputSlots = 4

// ErrUnsupportedCodec is returned for codecs with no raw demuxer in ffmpeg.
var ErrUnsupportedCodec = errors.New("unsupported codec")

// codecFormats lists the Annex-B elementary streams the mp4 demuxer produces.
var codecFormats = map[string]string{
	"video/avc":  "h264",
	"video/hevc": "hevc",
}

// InputFormat returns the ffmpeg input format for a codec identifier.
func InputFormat(codec string) (string, bool) {
	format, ok := codecFormats[strings.ToLower(strings.TrimSpace(codec))]
	return format, ok
}

// Provider creates ffmpeg decoder engines.
type Provider struct {
	Binary     string
	InputSlots int
	Logger     *slog.Logger
}

// NewDecoder implements extract.DecoderProvider.
func (p Provider) NewDecoder(codec string) (extract.Decoder, error) {
	format, ok := InputFormat(codec)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", binary, err)
	}
	slots := p.InputSlots
	if slots <= 0 {
		slots = DefaultInputSlots
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return newDecoder(resolved, format, slots, logging.NewComponentLogger(logger, "ffmpeg")), nil
}
