// Package streaminfo inspects Annex-B H.264 output: NAL unit statistics and
// a readable summary of the sequence parameter set.
package streaminfo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// Stats accumulates counters over emitted fragments.
type Stats struct {
	Fragments int
	Bytes     int64
	// KeyFrames counts fragments that contain an IDR slice.
	KeyFrames int
	NALUs     map[h264.NALUType]int
}

// Add records one non-empty fragment.
func (s *Stats) Add(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}

	var nalus h264.AnnexB
	if err := nalus.Unmarshal(fragment); err != nil {
		return fmt.Errorf("parse fragment %d: %w", s.Fragments, err)
	}

	if s.NALUs == nil {
		s.NALUs = make(map[h264.NALUType]int)
	}

	idr := false
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		typ := h264.NALUType(nalu[0] & 0x1F)
		s.NALUs[typ]++
		if typ == h264.NALUTypeIDR {
			idr = true
		}
	}

	s.Fragments++
	s.Bytes += int64(len(fragment))
	if idr {
		s.KeyFrames++
	}
	return nil
}

// Count returns how many NAL units of typ were seen.
func (s *Stats) Count(typ h264.NALUType) int {
	return s.NALUs[typ]
}

// String lists the NAL unit counts ordered by type.
func (s *Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d fragments, %d bytes, %d keyframes", s.Fragments, s.Bytes, s.KeyFrames)
	types := make([]h264.NALUType, 0, len(s.NALUs))
	for typ := range s.NALUs {
		types = append(types, typ)
	}
	slices.Sort(types)
	for _, typ := range types {
		fmt.Fprintf(&b, "\n  %-24s %d", typ.String(), s.NALUs[typ])
	}
	return b.String()
}
