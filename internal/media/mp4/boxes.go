package mp4

import (
	"fmt"
	"io"
	"math"

	gomp4 "github.com/abema/go-mp4"
)

// trakInfo collects the per-trak boxes Probe does not surface.
type trakInfo struct {
	handler     string
	sampleEntry string
	// width and height come from tkhd; entryWidth and entryHeight from the
	// visual sample entry, which holds the coded size.
	width       int
	height      int
	entryWidth  int
	entryHeight int
	rotation    int
	// lengthSize and paramSets come from avcC or hvcC. Parameter sets are
	// kept in container order.
	lengthSize int
	paramSets  [][]byte
}

func sampleEntryPath(entry gomp4.BoxType, children ...gomp4.BoxType) gomp4.BoxPath {
	path := gomp4.BoxPath{
		gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(),
		gomp4.BoxTypeStsd(), entry,
	}
	return append(path, children...)
}

// trakPaths are relative to a trak box.
var trakPaths = []gomp4.BoxPath{
	{gomp4.BoxTypeTkhd()},
	{gomp4.BoxTypeMdia(), gomp4.BoxTypeHdlr()},
	sampleEntryPath(gomp4.BoxTypeAvc1()),
	sampleEntryPath(gomp4.BoxTypeAvc1(), gomp4.BoxTypeAvcC()),
	sampleEntryPath(gomp4.BoxTypeHvc1()),
	sampleEntryPath(gomp4.BoxTypeHvc1(), gomp4.BoxTypeHvcC()),
	sampleEntryPath(gomp4.BoxTypeHev1()),
	sampleEntryPath(gomp4.BoxTypeHev1(), gomp4.BoxTypeHvcC()),
}

func readTraks(r io.ReadSeeker) ([]trakInfo, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}
	traks, err := gomp4.ExtractBoxes(r, nil, []gomp4.BoxPath{{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak()}})
	if err != nil {
		return nil, fmt.Errorf("locate trak boxes: %w", err)
	}
	infos := make([]trakInfo, 0, len(traks))
	for i, trak := range traks {
		info, err := readTrak(r, trak)
		if err != nil {
			return nil, fmt.Errorf("trak %d: %w", i, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func readTrak(r io.ReadSeeker, trak *gomp4.BoxInfo) (trakInfo, error) {
	var info trakInfo
	boxes, err := gomp4.ExtractBoxesWithPayload(r, trak, trakPaths)
	if err != nil {
		return info, fmt.Errorf("read boxes: %w", err)
	}
	for _, box := range boxes {
		switch payload := box.Payload.(type) {
		case *gomp4.Tkhd:
			info.width = int(payload.Width >> 16)
			info.height = int(payload.Height >> 16)
			info.rotation = matrixRotation(payload.Matrix)
		case *gomp4.Hdlr:
			info.handler = string(payload.HandlerType[:])
		case *gomp4.VisualSampleEntry:
			if info.sampleEntry == "" {
				info.sampleEntry = box.Info.Type.String()
				info.entryWidth = int(payload.Width)
				info.entryHeight = int(payload.Height)
			}
		case *gomp4.AVCDecoderConfiguration:
			info.lengthSize = int(payload.LengthSizeMinusOne) + 1
			for _, set := range payload.SequenceParameterSets {
				info.paramSets = append(info.paramSets, set.NALUnit)
			}
			for _, set := range payload.PictureParameterSets {
				info.paramSets = append(info.paramSets, set.NALUnit)
			}
		case *gomp4.HvcC:
			info.lengthSize = int(payload.LengthSizeMinusOne) + 1
			for _, array := range payload.NaluArrays {
				for _, nalu := range array.Nalus {
					info.paramSets = append(info.paramSets, nalu.NALUnit)
				}
			}
		}
	}
	return info, nil
}

// matrixRotation returns the clockwise rotation encoded in a tkhd matrix.
// The first two entries are a = cos(theta) and b = sin(theta) in 16.16.
func matrixRotation(m [9]int32) int {
	a := float64(m[0]) / 65536
	b := float64(m[1]) / 65536
	if a == 0 && b == 0 {
		return 0
	}
	deg := int(math.Round(math.Atan2(b, a) * 180 / math.Pi))
	if deg < 0 {
		deg += 360
	}
	return deg % 360
}

// codecMime maps a probed codec and trak boxes to a mime-like identifier.
func codecMime(codec gomp4.Codec, info trakInfo) string {
	switch {
	case codec == gomp4.CodecAVC1:
		return "video/avc"
	case isHEVCEntry(info.sampleEntry):
		return "video/hevc"
	case codec == gomp4.CodecMP4A:
		return "audio/mp4a-latm"
	}
	switch info.handler {
	case "vide":
		return "video/unknown"
	case "soun":
		return "audio/unknown"
	case "":
		return "application/octet-stream"
	default:
		return "application/" + info.handler
	}
}

func isHEVCEntry(entry string) bool {
	return entry == "hvc1" || entry == "hev1"
}
