// Package codecselect picks an encoder from a list of capability descriptors.
package codecselect

import (
	"slices"

	"github.com/user/avcstream/pkg/ports"
)

// Criteria describes the encoder being looked for.
type Criteria struct {
	// MimeType the encoder must handle, e.g. ports.MimeTypeAVC.
	MimeType string
	// ColorFormat the encoder must accept for MimeType.
	ColorFormat ports.ColorFormat
	// Name restricts the match to one codec when non-empty.
	Name string
	// HardwareOnly skips software encoders.
	HardwareOnly bool
}

// Select returns the first encoder in codecs that satisfies c.
// Decoders are never returned.
func Select(codecs []ports.CodecInfo, c Criteria) (ports.CodecInfo, bool) {
	for _, info := range codecs {
		if Matches(info, c) {
			return info, true
		}
	}
	return ports.CodecInfo{}, false
}

// Matches reports whether a single descriptor satisfies c.
func Matches(info ports.CodecInfo, c Criteria) bool {
	if !info.Encoder {
		return false
	}
	if c.Name != "" && info.Name != c.Name {
		return false
	}
	if c.HardwareOnly && !info.Hardware {
		return false
	}

	caps, ok := info.CapabilitiesFor(c.MimeType)
	if !ok {
		return false
	}
	return slices.Contains(caps.ColorFormats, c.ColorFormat)
}
