package ffmpegcodec

import (
	"bytes"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/user/avcstream/pkg/ports"
)

// audPrefix is a 3-byte start code followed by an access unit delimiter header.
var audPrefix = []byte{0x00, 0x00, 0x01, byte(h264.NALUTypeAccessUnitDelimiter)}

// accessUnitSplitter cuts an Annex-B byte stream into access units. The
// stream must carry an access unit delimiter in front of every unit.
type accessUnitSplitter struct {
	buf     []byte
	scanned int
}

// Write appends p and returns every access unit it completed.
func (s *accessUnitSplitter) Write(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	var aus [][]byte
	for {
		next := s.nextDelimiter()
		if next < 0 {
			return aus
		}
		aus = append(aus, bytes.Clone(s.buf[:next]))
		s.buf = append(s.buf[:0], s.buf[next:]...)
		s.scanned = 0
	}
}

// Flush returns the trailing access unit, if any.
func (s *accessUnitSplitter) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	au := bytes.Clone(s.buf)
	s.buf = s.buf[:0]
	s.scanned = 0
	return au
}

// nextDelimiter finds the start of the second delimiter in buf, skipping
// the one the buffer starts with.
func (s *accessUnitSplitter) nextDelimiter() int {
	from := max(4, s.scanned-len(audPrefix))
	if from >= len(s.buf) {
		return -1
	}

	i := bytes.Index(s.buf[from:], audPrefix)
	if i < 0 {
		s.scanned = len(s.buf)
		return -1
	}

	pos := from + i
	if s.buf[pos-1] == 0x00 {
		pos--
	}
	return pos
}

// outputUnit is one encoder output buffer.
type outputUnit struct {
	data  []byte
	pts   int64
	flags ports.BufferFlags
}

// unitBuilder turns access units into output units: the first parameter
// sets are reported once, on their own, and frames keep only slice data.
type unitBuilder struct {
	configSent bool
}

// build returns the units for au. frame reports whether the last unit
// carries a picture.
func (b *unitBuilder) build(au []byte) (units []outputUnit, frame bool, err error) {
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(au); err != nil {
		return nil, false, fmt.Errorf("split access unit: %w", err)
	}

	var params, slices [][]byte
	idr := false
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS, h264.NALUTypePPS:
			params = append(params, nalu)
		case h264.NALUTypeIDR:
			idr = true
			slices = append(slices, nalu)
		case h264.NALUTypeNonIDR:
			slices = append(slices, nalu)
		}
	}

	if !b.configSent && len(params) > 0 {
		units = append(units, outputUnit{data: joinNALUs(params), flags: ports.BufferFlagCodecConfig})
		b.configSent = true
	}

	if len(slices) > 0 {
		var flags ports.BufferFlags
		if idr {
			flags = ports.BufferFlagKeyFrame
		}
		units = append(units, outputUnit{data: joinNALUs(slices), flags: flags})
		frame = true
	}

	return units, frame, nil
}

// joinNALUs writes nalus as Annex-B with 4-byte start codes, which the
// keyframe check downstream relies on.
func joinNALUs(nalus [][]byte) []byte {
	size := 0
	for _, nalu := range nalus {
		size += 4 + len(nalu)
	}

	out := make([]byte, 0, size)
	for _, nalu := range nalus {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, nalu...)
	}
	return out
}
