package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
	SideDataList []SideData        `json:"side_data_list"`
	Disposition  map[string]int    `json:"disposition"`
}

// SideData is one entry of a stream's side_data_list.
type SideData struct {
	SideDataType string `json:"side_data_type"`
	Rotation     *int   `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes a captured ffprobe JSON payload.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if stream.IsVideo() {
			count++
		}
	}
	return count
}

// FirstVideo returns the first video stream that is not an attached picture.
func (r Result) FirstVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if stream.IsVideo() && stream.Disposition["attached_pic"] == 0 {
			return stream, true
		}
	}
	return Stream{}, false
}

// IsVideo reports whether the stream carries video.
func (s Stream) IsVideo() bool {
	return strings.EqualFold(s.CodecType, "video")
}

// Rotation returns the clockwise display rotation of the stream in degrees.
// The legacy "rotate" tag wins over display-matrix side data, whose sign is
// counter-clockwise.
func (s Stream) Rotation() (int, bool) {
	if raw, ok := s.Tags["rotate"]; ok {
		if value, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return value, true
		}
	}
	for _, side := range s.SideDataList {
		if side.Rotation == nil {
			continue
		}
		if !strings.EqualFold(side.SideDataType, "Display Matrix") && side.SideDataType != "" {
			continue
		}
		return -*side.Rotation, true
	}
	return 0, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	value := parseFloat(r.Format.Duration)
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}

// DurationMillis returns the container duration rounded to milliseconds.
// When the container omits it, the first video stream's duration is used.
func (r Result) DurationMillis() int64 {
	seconds := r.DurationSeconds()
	if seconds == 0 {
		if video, ok := r.FirstVideo(); ok {
			if v := parseFloat(video.Duration); !math.IsNaN(v) && v > 0 {
				seconds = v
			}
		}
	}
	return int64(math.Round(seconds * 1000))
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
