package extract

import (
	"context"
	"fmt"

	"framex/internal/fileutil"
)

// DefaultRotation is applied when the container carries no rotation
// metadata.
const DefaultRotation = 90

// Probe checks that path is readable and reads its rotation and duration.
func Probe(ctx context.Context, prober MetadataProber, path string) (SourceDescriptor, error) {
	if err := fileutil.CheckReadable(path); err != nil {
		return SourceDescriptor{}, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if prober == nil {
		return SourceDescriptor{}, fmt.Errorf("%w: no metadata prober configured", ErrSourceUnreadable)
	}
	meta, err := prober.ProbeMetadata(ctx, path)
	if err != nil {
		return SourceDescriptor{}, fmt.Errorf("%w: probe %s: %v", ErrSourceUnreadable, path, err)
	}
	rotation := DefaultRotation
	if meta.RotationKnown {
		rotation = NormalizeRotation(meta.Rotation)
	}
	duration := meta.DurationMillis
	if duration < 0 {
		duration = 0
	}
	return SourceDescriptor{
		Path:           path,
		DurationMillis: duration,
		Rotation:       rotation,
	}, nil
}

// NormalizeRotation maps any angle in degrees to the nearest of 0, 90, 180
// or 270.
func NormalizeRotation(degrees int) int {
	degrees %= 360
	if degrees < 0 {
		degrees += 360
	}
	quarter := (degrees + 45) / 90
	return (quarter % 4) * 90
}

// SelectVideoTrack returns the first video track in container order.
func SelectVideoTrack(tracks []TrackFormat) (TrackFormat, error) {
	for _, track := range tracks {
		if track.IsVideo() {
			return track, nil
		}
	}
	return TrackFormat{}, fmt.Errorf("%w among %d track(s)", ErrNoVideoTrack, len(tracks))
}
