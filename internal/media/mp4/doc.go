// Package mp4 demuxes ISO base media files with github.com/abema/go-mp4.
//
// Open builds per-track sample tables from the moov box and exposes them
// through the extract.Demuxer contract. AVC and HEVC samples are rewritten
// from length-prefixed NAL units to Annex-B byte streams, with the avcC or
// hvcC parameter sets prepended to the first sample, so they can be piped
// to a raw h264 or hevc decoder. Prober reads duration and the track header display matrix
// without touching sample data.
package mp4
