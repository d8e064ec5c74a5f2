package mp4

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	gomp4 "github.com/abema/go-mp4"

	"framex/internal/extract"
)

var annexBStartCode = []byte{0, 0, 0, 1}

type sampleRef struct {
	offset int64
	size   int
	pts    time.Duration
}

type trackState struct {
	format     extract.TrackFormat
	samples    []sampleRef
	lengthSize int
	header     []byte
}

// Demuxer reads samples from a single MP4 file.
type Demuxer struct {
	r      io.ReaderAt
	closer io.Closer

	tracks   []trackState
	selected int
	cursor   int

	closeOnce sync.Once
	closeErr  error
}

// Open probes the file at path and returns a demuxer with no track selected.
func Open(ctx context.Context, path string) (*Demuxer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp4: %w", err)
	}
	tracks, err := readTracks(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("probe mp4 %s: %w", path, err)
	}
	return newDemuxer(file, file, tracks), nil
}

// OpenDemuxer adapts Open to extract.DemuxerOpener.
func OpenDemuxer(ctx context.Context, path string) (extract.Demuxer, error) {
	d, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newDemuxer(r io.ReaderAt, closer io.Closer, tracks []trackState) *Demuxer {
	return &Demuxer{r: r, closer: closer, tracks: tracks, selected: -1}
}

func readTracks(r io.ReadSeeker) ([]trackState, error) {
	info, err := gomp4.Probe(r)
	if err != nil {
		return nil, err
	}
	traks, err := readTraks(r)
	if err != nil {
		return nil, err
	}

	tracks := make([]trackState, 0, len(info.Tracks))
	for i, track := range info.Tracks {
		var extra trakInfo
		if i < len(traks) {
			extra = traks[i]
		}
		state := trackState{
			format: extract.TrackFormat{
				Index:   i,
				TrackID: int(track.TrackID),
				Codec:   codecMime(track.Codec, extra),
				Width:   extra.width,
				Height:  extra.height,
			},
			samples: sampleTable(track),
		}
		if extra.entryWidth > 0 && extra.entryHeight > 0 {
			state.format.Width = extra.entryWidth
			state.format.Height = extra.entryHeight
		}
		switch state.format.Codec {
		case "video/avc", "video/hevc":
			state.lengthSize = extra.lengthSize
			state.header = parameterSetHeader(extra.paramSets)
		}
		tracks = append(tracks, state)
	}
	return tracks, nil
}

// sampleTable resolves file offsets and presentation times for every sample.
func sampleTable(track *gomp4.Track) []sampleRef {
	refs := make([]sampleRef, 0, len(track.Samples))
	timescale := int64(track.Timescale)
	if timescale <= 0 {
		timescale = 1
	}
	var dts int64
	next := 0
	for _, chunk := range track.Chunks {
		offset := int64(chunk.DataOffset)
		for j := uint32(0); j < chunk.SamplesPerChunk && next < len(track.Samples); j++ {
			sample := track.Samples[next]
			refs = append(refs, sampleRef{
				offset: offset,
				size:   int(sample.Size),
				pts:    ticksToDuration(dts+sample.CompositionTimeOffset, timescale),
			})
			offset += int64(sample.Size)
			dts += int64(sample.TimeDelta)
			next++
		}
	}
	return refs
}

// ticksToDuration converts media ticks without overflowing on long tracks.
func ticksToDuration(ticks, timescale int64) time.Duration {
	whole := ticks / timescale
	rem := ticks % timescale
	return time.Duration(whole)*time.Second + time.Duration(rem)*time.Second/time.Duration(timescale)
}

func parameterSetHeader(sets [][]byte) []byte {
	var header []byte
	for _, set := range sets {
		header = append(header, annexBStartCode...)
		header = append(header, set...)
	}
	return header
}

// Tracks implements extract.Demuxer.
func (d *Demuxer) Tracks() []extract.TrackFormat {
	formats := make([]extract.TrackFormat, len(d.tracks))
	for i, track := range d.tracks {
		formats[i] = track.format
	}
	return formats
}

// SelectTrack implements extract.Demuxer. Selecting rewinds the cursor.
func (d *Demuxer) SelectTrack(index int) error {
	if index < 0 || index >= len(d.tracks) {
		return fmt.Errorf("select track %d: out of range (have %d)", index, len(d.tracks))
	}
	d.selected = index
	d.cursor = 0
	return nil
}

// ReadSample implements extract.Demuxer.
func (d *Demuxer) ReadSample() (extract.Sample, error) {
	if d.selected < 0 {
		return extract.Sample{}, errors.New("read sample: no track selected")
	}
	track := &d.tracks[d.selected]
	if d.cursor >= len(track.samples) {
		return extract.Sample{}, io.EOF
	}
	ref := track.samples[d.cursor]
	raw := make([]byte, ref.size)
	if _, err := d.r.ReadAt(raw, ref.offset); err != nil {
		return extract.Sample{}, fmt.Errorf("read sample %d: %w", d.cursor, err)
	}

	data := raw
	if track.lengthSize > 0 {
		var err error
		data, err = toAnnexB(raw, track.lengthSize)
		if err != nil {
			return extract.Sample{}, fmt.Errorf("read sample %d: %w", d.cursor, err)
		}
		if d.cursor == 0 && len(track.header) > 0 {
			data = append(append([]byte{}, track.header...), data...)
		}
	}
	return extract.Sample{
		TrackID:          track.format.TrackID,
		Data:             data,
		PresentationTime: ref.pts,
	}, nil
}

// Advance implements extract.Demuxer.
func (d *Demuxer) Advance() bool {
	if d.selected < 0 {
		return false
	}
	if d.cursor < len(d.tracks[d.selected].samples) {
		d.cursor++
	}
	return d.cursor < len(d.tracks[d.selected].samples)
}

// Close implements extract.Demuxer.
func (d *Demuxer) Close() error {
	d.closeOnce.Do(func() {
		if d.closer != nil {
			d.closeErr = d.closer.Close()
		}
	})
	return d.closeErr
}

// toAnnexB rewrites length-prefixed NAL units with start codes.
func toAnnexB(sample []byte, lengthSize int) ([]byte, error) {
	if lengthSize < 1 || lengthSize > 4 {
		return nil, fmt.Errorf("unsupported NAL length size %d", lengthSize)
	}
	out := make([]byte, 0, len(sample)+len(annexBStartCode))
	for pos := 0; pos < len(sample); {
		if pos+lengthSize > len(sample) {
			return nil, errors.New("truncated NAL length")
		}
		n := 0
		for i := 0; i < lengthSize; i++ {
			n = n<<8 | int(sample[pos+i])
		}
		pos += lengthSize
		if n > len(sample)-pos {
			return nil, fmt.Errorf("NAL unit of %d bytes exceeds sample", n)
		}
		out = append(out, annexBStartCode...)
		out = append(out, sample[pos:pos+n]...)
		pos += n
	}
	return out, nil
}
