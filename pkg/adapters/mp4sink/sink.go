// Package mp4sink muxes the elementary stream into a fragmented MP4 file.
// Samples are collected in memory and the file is written on Close.
package mp4sink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/streaminfo"
)

var (
	// ErrNoFrames is returned when closing a sink that received no pictures.
	ErrNoFrames = errors.New("mp4sink: no frames to write")

	// ErrNoParameterSets is returned when no SPS/PPS preceded the first picture.
	ErrNoParameterSets = errors.New("mp4sink: SPS or PPS not found")
)

// timescale is the media time base in ticks per second.
const timescale = 90000

type sample struct {
	data  []byte
	isIDR bool
}

// Sink collects pictures for one video track.
type Sink struct {
	w         io.WriteCloser
	width     int
	height    int
	frameRate int

	sps     []byte
	pps     []byte
	samples []sample
	size    int
}

// New muxes into w. width and height go into the track header.
func New(w io.WriteCloser, width, height, frameRate int) *Sink {
	return &Sink{
		w:         w,
		width:     width,
		height:    height,
		frameRate: max(frameRate, 1),
	}
}

// Create creates path on fs and muxes into it.
func Create(fs ports.FileSystem, path string, width, height, frameRate int) (*Sink, error) {
	w, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return New(w, width, height, frameRate), nil
}

// WriteFragment stores every picture of fragment as one sample.
func (s *Sink) WriteFragment(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}

	pictures, err := streaminfo.SplitPictures(fragment)
	if err != nil {
		return err
	}

	for _, pic := range pictures {
		data := s.toAVCC(pic.NALUs)
		s.samples = append(s.samples, sample{data: data, isIDR: pic.IDR})
		s.size += len(data)
	}
	return nil
}

// toAVCC converts NAL units to length-prefixed samples, keeping the first
// SPS and PPS for the sample description.
func (s *Sink) toAVCC(nalus [][]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			if s.sps == nil {
				s.sps = bytes.Clone(nalu)
			}
			continue
		case h264.NALUTypePPS:
			if s.pps == nil {
				s.pps = bytes.Clone(nalu)
			}
			continue
		}

		out = binary.BigEndian.AppendUint32(out, uint32(len(nalu)))
		out = append(out, nalu...)
	}
	return out
}

// Samples returns the number of pictures collected.
func (s *Sink) Samples() int {
	return len(s.samples)
}

// Close writes the MP4 file and closes the output.
func (s *Sink) Close() error {
	data, err := s.build()
	if err != nil {
		s.w.Close()
		return err
	}

	if _, err := s.w.Write(data); err != nil {
		s.w.Close()
		return fmt.Errorf("write mp4: %w", err)
	}
	return s.w.Close()
}

func (s *Sink) build() ([]byte, error) {
	if len(s.samples) == 0 {
		return nil, ErrNoFrames
	}
	if s.sps == nil || s.pps == nil {
		return nil, ErrNoParameterSets
	}

	const trackID = 1

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")
	trak := init.Moov.Trak

	avcC, err := mp4.CreateAvcC([][]byte{s.sps}, [][]byte{s.pps}, true)
	if err != nil {
		return nil, fmt.Errorf("create avcC: %w", err)
	}

	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(s.width), uint16(s.height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)
	trak.Tkhd.Width = mp4.Fixed32(s.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(s.height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	dur := uint32(timescale / s.frameRate)
	for i, smp := range s.samples {
		flags := mp4.NonSyncSampleFlags
		if smp.isIDR {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(smp.data)),
				Dur:   dur,
			},
			DecodeTime: uint64(i) * uint64(dur),
			Data:       smp.data,
		})
	}

	var buf bytes.Buffer
	buf.Grow(s.size + 1024)

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}

	return buf.Bytes(), nil
}

var _ ports.StreamSink = (*Sink)(nil)
