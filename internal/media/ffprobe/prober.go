package ffprobe

import (
	"context"

	"framex/internal/extract"
)

// Prober reads rotation and duration by running ffprobe.
type Prober struct {
	Binary string
}

// ProbeMetadata implements extract.MetadataProber.
func (p Prober) ProbeMetadata(ctx context.Context, path string) (extract.Metadata, error) {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return extract.Metadata{}, err
	}
	return MetadataFrom(result), nil
}

// MetadataFrom converts an ffprobe result to extraction metadata.
func MetadataFrom(result Result) extract.Metadata {
	meta := extract.Metadata{DurationMillis: result.DurationMillis()}
	if video, ok := result.FirstVideo(); ok {
		meta.Rotation, meta.RotationKnown = video.Rotation()
	}
	return meta
}
