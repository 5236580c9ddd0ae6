package streaminfo

import (
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"
)

// ErrNoSPS is returned when a parameter set blob carries no SPS.
var ErrNoSPS = errors.New("streaminfo: no sequence parameter set")

// Description is the readable content of a parameter set blob.
type Description struct {
	ProfileIDC uint32
	LevelIDC   uint32
	Width      int
	Height     int
	SPSCount   int
	PPSCount   int
}

// Profile returns the profile name for ProfileIDC.
func (d Description) Profile() string {
	switch d.ProfileIDC {
	case 66:
		return "Baseline"
	case 77:
		return "Main"
	case 88:
		return "Extended"
	case 100:
		return "High"
	case 110:
		return "High 10"
	case 122:
		return "High 4:2:2"
	case 244:
		return "High 4:4:4"
	default:
		return fmt.Sprintf("profile %d", d.ProfileIDC)
	}
}

// Level returns the level as major.minor.
func (d Description) Level() string {
	return fmt.Sprintf("%d.%d", d.LevelIDC/10, d.LevelIDC%10)
}

// DescribeParameterSets decodes the first SPS of an Annex-B blob.
func DescribeParameterSets(params []byte) (Description, error) {
	var (
		desc Description
		sps  []byte
	)

	for _, nalu := range avc.ExtractNalusFromByteStream(params) {
		if len(nalu) == 0 {
			continue
		}
		switch avc.GetNaluType(nalu[0]) {
		case avc.NALU_SPS:
			desc.SPSCount++
			if sps == nil {
				sps = nalu
			}
		case avc.NALU_PPS:
			desc.PPSCount++
		}
	}
	if sps == nil {
		return desc, ErrNoSPS
	}

	parsed, err := avc.ParseSPSNALUnit(sps, false)
	if err != nil {
		return desc, fmt.Errorf("parse SPS: %w", err)
	}

	desc.ProfileIDC = parsed.Profile
	desc.LevelIDC = parsed.Level
	desc.Width = int(parsed.Width)
	desc.Height = int(parsed.Height)
	return desc, nil
}

// FindParameterSets returns the first SPS and PPS of an Annex-B stream as
// one blob with 4-byte start codes, or nil when either is missing.
func FindParameterSets(stream []byte) []byte {
	var sps, pps []byte
	for _, nalu := range avc.ExtractNalusFromByteStream(stream) {
		if len(nalu) == 0 {
			continue
		}
		switch avc.GetNaluType(nalu[0]) {
		case avc.NALU_SPS:
			if sps == nil {
				sps = nalu
			}
		case avc.NALU_PPS:
			if pps == nil {
				pps = nalu
			}
		}
		if sps != nil && pps != nil {
			break
		}
	}
	if sps == nil || pps == nil {
		return nil
	}

	out := make([]byte, 0, 8+len(sps)+len(pps))
	out = append(out, 0x00, 0x00, 0x00, 0x01)
	out = append(out, sps...)
	out = append(out, 0x00, 0x00, 0x00, 0x01)
	return append(out, pps...)
}
