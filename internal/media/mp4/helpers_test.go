package mp4

import (
	"os"
	"path/filepath"
	"testing"

	gomp4 "github.com/abema/go-mp4"

	"framex/internal/extract"
)

func trackFormat(index, id int, codec string) extract.TrackFormat {
	return extract.TrackFormat{Index: index, TrackID: id, Codec: codec, Width: 640, Height: 480}
}

var (
	identityMatrix  = [9]int32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000}
	clockwiseMatrix = [9]int32{0, 0x10000, 0, -0x10000, 0, 0, 0, 0, 0x40000000}
)

// fixtureTrak describes one track of a generated file. Samples are stored
// length-prefixed, one chunk per track.
type fixtureTrak struct {
	id        uint32
	handler   string
	entry     gomp4.BoxType
	width     uint16
	height    uint16
	matrix    [9]int32
	timescale uint32
	delta     uint32
	samples   [][]byte
	sps, pps  [][]byte
	vps       [][]byte
}

type mp4Fixture struct {
	t *testing.T
	w *gomp4.Writer
}

func (f mp4Fixture) box(box gomp4.IImmutableBox, children func()) {
	f.t.Helper()
	if _, err := f.w.StartBox(&gomp4.BoxInfo{Type: box.GetType()}); err != nil {
		f.t.Fatalf("start %s: %v", box.GetType(), err)
	}
	if _, err := gomp4.Marshal(f.w, box, gomp4.Context{}); err != nil {
		f.t.Fatalf("marshal %s: %v", box.GetType(), err)
	}
	if children != nil {
		children()
	}
	if _, err := f.w.EndBox(); err != nil {
		f.t.Fatalf("end %s: %v", box.GetType(), err)
	}
}

func (f mp4Fixture) container(boxType gomp4.BoxType, children func()) {
	f.t.Helper()
	if _, err := f.w.StartBox(&gomp4.BoxInfo{Type: boxType}); err != nil {
		f.t.Fatalf("start %s: %v", boxType, err)
	}
	children()
	if _, err := f.w.EndBox(); err != nil {
		f.t.Fatalf("end %s: %v", boxType, err)
	}
}

// writeMP4 writes ftyp, mdat and moov for traks and returns the file path.
func writeMP4(t *testing.T, movieTimescale, movieDuration uint32, traks []fixtureTrak) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.mp4")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer file.Close()
	f := mp4Fixture{t: t, w: gomp4.NewWriter(file)}

	f.box(&gomp4.Ftyp{
		MajorBrand: [4]byte{'i', 's', 'o', 'm'},
		CompatibleBrands: []gomp4.CompatibleBrandElem{
			{CompatibleBrand: [4]byte{'i', 's', 'o', 'm'}},
			{CompatibleBrand: [4]byte{'m', 'p', '4', '1'}},
		},
	}, nil)

	mdat, err := f.w.StartBox(&gomp4.BoxInfo{Type: gomp4.BoxTypeMdat()})
	if err != nil {
		t.Fatalf("start mdat: %v", err)
	}
	offsets := make([]uint32, len(traks))
	next := mdat.Offset + mdat.HeaderSize
	for i, trak := range traks {
		offsets[i] = uint32(next)
		for _, sample := range trak.samples {
			if _, err := f.w.Write(sample); err != nil {
				t.Fatalf("write sample: %v", err)
			}
			next += uint64(len(sample))
		}
	}
	if _, err := f.w.EndBox(); err != nil {
		t.Fatalf("end mdat: %v", err)
	}

	f.container(gomp4.BoxTypeMoov(), func() {
		f.box(&gomp4.Mvhd{
			Timescale:   movieTimescale,
			DurationV0:  movieDuration,
			Rate:        0x10000,
			Volume:      0x100,
			Matrix:      identityMatrix,
			NextTrackID: uint32(len(traks) + 1),
		}, nil)
		for i, trak := range traks {
			f.writeTrak(trak, offsets[i])
		}
	})
	return path
}

func (f mp4Fixture) writeTrak(trak fixtureTrak, offset uint32) {
	count := uint32(len(trak.samples))
	sizes := make([]uint32, len(trak.samples))
	for i, sample := range trak.samples {
		sizes[i] = uint32(len(sample))
	}

	f.container(gomp4.BoxTypeTrak(), func() {
		f.box(&gomp4.Tkhd{
			TrackID:    trak.id,
			DurationV0: count * trak.delta,
			Matrix:     trak.matrix,
			Width:      uint32(trak.width) << 16,
			Height:     uint32(trak.height) << 16,
		}, nil)
		f.container(gomp4.BoxTypeMdia(), func() {
			f.box(&gomp4.Mdhd{Timescale: trak.timescale, DurationV0: count * trak.delta}, nil)
			f.box(&gomp4.Hdlr{HandlerType: [4]byte{trak.handler[0], trak.handler[1], trak.handler[2], trak.handler[3]}}, nil)
			f.container(gomp4.BoxTypeMinf(), func() {
				f.container(gomp4.BoxTypeStbl(), func() {
					f.box(&gomp4.Stsd{EntryCount: 1}, func() { f.writeSampleEntry(trak) })
					f.box(&gomp4.Stts{EntryCount: 1, Entries: []gomp4.SttsEntry{{SampleCount: count, SampleDelta: trak.delta}}}, nil)
					f.box(&gomp4.Stsc{EntryCount: 1, Entries: []gomp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: count, SampleDescriptionIndex: 1}}}, nil)
					f.box(&gomp4.Stsz{SampleCount: count, EntrySize: sizes}, nil)
					f.box(&gomp4.Stco{EntryCount: 1, ChunkOffset: []uint32{offset}}, nil)
				})
			})
		})
	})
}

func (f mp4Fixture) writeSampleEntry(trak fixtureTrak) {
	switch trak.entry {
	case gomp4.BoxTypeMp4a():
		f.box(&gomp4.AudioSampleEntry{
			SampleEntry:  gomp4.SampleEntry{AnyTypeBox: gomp4.AnyTypeBox{Type: trak.entry}, DataReferenceIndex: 1},
			ChannelCount: 2,
			SampleSize:   16,
			SampleRate:   48000 << 16,
		}, nil)
		return
	}

	f.box(&gomp4.VisualSampleEntry{
		SampleEntry:     gomp4.SampleEntry{AnyTypeBox: gomp4.AnyTypeBox{Type: trak.entry}, DataReferenceIndex: 1},
		Width:           trak.width,
		Height:          trak.height,
		Horizresolution: 0x480000,
		Vertresolution:  0x480000,
		FrameCount:      1,
		Depth:           0x18,
		PreDefined3:     -1,
	}, func() {
		if trak.entry == gomp4.BoxTypeAvc1() {
			f.box(avcConfig(trak.sps, trak.pps), nil)
			return
		}
		f.box(hevcConfig(trak.vps, trak.sps, trak.pps), nil)
	})
}

func avcConfig(sps, pps [][]byte) *gomp4.AVCDecoderConfiguration {
	config := &gomp4.AVCDecoderConfiguration{
		AnyTypeBox:                 gomp4.AnyTypeBox{Type: gomp4.BoxTypeAvcC()},
		ConfigurationVersion:       1,
		Profile:                    gomp4.AVCMainProfile,
		Level:                      0x1f,
		Reserved:                   0x3f,
		LengthSizeMinusOne:         3,
		Reserved2:                  0x7,
		NumOfSequenceParameterSets: uint8(len(sps)),
		NumOfPictureParameterSets:  uint8(len(pps)),
	}
	for _, set := range sps {
		config.SequenceParameterSets = append(config.SequenceParameterSets, gomp4.AVCParameterSet{Length: uint16(len(set)), NALUnit: set})
	}
	for _, set := range pps {
		config.PictureParameterSets = append(config.PictureParameterSets, gomp4.AVCParameterSet{Length: uint16(len(set)), NALUnit: set})
	}
	return config
}

func hevcConfig(vps, sps, pps [][]byte) *gomp4.HvcC {
	config := &gomp4.HvcC{
		ConfigurationVersion: 1,
		GeneralProfileIdc:    1,
		GeneralLevelIdc:      93,
		Reserved1:            0xf,
		Reserved2:            0x3f,
		Reserved3:            0x3f,
		ChromaFormatIdc:      1,
		Reserved4:            0x1f,
		Reserved5:            0x1f,
		LengthSizeMinusOne:   3,
	}
	for _, array := range []struct {
		naluType uint8
		sets     [][]byte
	}{{32, vps}, {33, sps}, {34, pps}} {
		if len(array.sets) == 0 {
			continue
		}
		entry := gomp4.HEVCNaluArray{Completeness: true, NaluType: array.naluType, NumNalus: uint16(len(array.sets))}
		for _, set := range array.sets {
			entry.Nalus = append(entry.Nalus, gomp4.HEVCNalu{Length: uint16(len(set)), NALUnit: set})
		}
		config.NaluArrays = append(config.NaluArrays, entry)
	}
	config.NumOfNaluArrays = uint8(len(config.NaluArrays))
	return config
}

// lengthPrefixed encodes NAL units with four-byte big-endian lengths.
func lengthPrefixed(nalus ...[]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		n := len(nalu)
		out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		out = append(out, nalu...)
	}
	return out
}
