package mp4

import (
	"context"
	"fmt"
	"os"

	gomp4 "github.com/abema/go-mp4"

	"framex/internal/extract"
)

// Prober reads duration and rotation from the moov box.
type Prober struct{}

// ProbeMetadata implements extract.MetadataProber. Rotation comes from the
// first video track's header matrix.
func (Prober) ProbeMetadata(ctx context.Context, path string) (extract.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return extract.Metadata{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return extract.Metadata{}, fmt.Errorf("open mp4: %w", err)
	}
	defer file.Close()

	info, err := gomp4.Probe(file)
	if err != nil {
		return extract.Metadata{}, fmt.Errorf("probe mp4 %s: %w", path, err)
	}
	traks, err := readTraks(file)
	if err != nil {
		return extract.Metadata{}, fmt.Errorf("probe mp4 %s: %w", path, err)
	}

	meta := extract.Metadata{DurationMillis: durationMillis(info.Duration, info.Timescale)}
	for _, trak := range traks {
		if trak.handler == "vide" {
			meta.Rotation = trak.rotation
			meta.RotationKnown = true
			break
		}
	}
	return meta, nil
}

func durationMillis(duration uint64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	return int64(duration * 1000 / uint64(timescale))
}
