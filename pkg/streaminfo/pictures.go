package streaminfo

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// Picture is the NAL units of one coded picture. Parameter sets that
// precede a picture are part of it.
type Picture struct {
	NALUs [][]byte
	IDR   bool
}

// SplitPictures cuts an Annex-B fragment into coded pictures. A slice whose
// first_mb_in_slice is zero starts a new picture. NAL units after the last
// slice are dropped.
func SplitPictures(fragment []byte) ([]Picture, error) {
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(fragment); err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	var (
		pictures []Picture
		pending  [][]byte
	)
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}

		typ := h264.NALUType(nalu[0] & 0x1F)
		switch typ {
		case h264.NALUTypeIDR, h264.NALUTypeNonIDR:
			if len(pictures) == 0 || firstSliceOfPicture(nalu) {
				pictures = append(pictures, Picture{})
			}
			current := &pictures[len(pictures)-1]
			current.NALUs = append(current.NALUs, pending...)
			current.NALUs = append(current.NALUs, nalu)
			current.IDR = current.IDR || typ == h264.NALUTypeIDR
			pending = nil

		case h264.NALUTypeAccessUnitDelimiter:

		default:
			pending = append(pending, nalu)
		}
	}

	return pictures, nil
}

// firstSliceOfPicture reports whether first_mb_in_slice is zero, which is
// coded as a single set bit right after the NAL header.
func firstSliceOfPicture(nalu []byte) bool {
	return len(nalu) > 1 && nalu[1]&0x80 != 0
}
