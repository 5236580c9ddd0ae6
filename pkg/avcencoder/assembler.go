package avcencoder

import "bytes"

// startCode is the 4-byte Annex-B NAL unit delimiter.
var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// idrNALHeader is the NAL header byte of an IDR slice with nal_ref_idc 3.
const idrNALHeader = 0x65

// BitstreamAssembler turns drained encoder units into caller-visible
// fragments. The first unit is kept as the parameter sets and is replayed
// in front of every keyframe.
type BitstreamAssembler struct {
	parameterSets []byte
	pending       bytes.Buffer
}

// Push hands one drained unit to the assembler. Empty units are ignored.
func (a *BitstreamAssembler) Push(unit []byte) error {
	if len(unit) == 0 {
		return nil
	}

	if a.parameterSets == nil {
		if !bytes.HasPrefix(unit, startCode) {
			return ErrParameterSetsMissing
		}
		a.parameterSets = bytes.Clone(unit)
		return nil
	}

	a.pending.Write(unit)
	return nil
}

// Emit returns the bytes accumulated since the last call, prefixed with the
// parameter sets when they begin with an IDR slice, and resets the accumulator.
func (a *BitstreamAssembler) Emit() []byte {
	defer a.pending.Reset()

	data := a.pending.Bytes()
	if len(data) == 0 {
		return nil
	}

	if !IsKeyFrame(data) {
		return bytes.Clone(data)
	}

	out := make([]byte, 0, len(a.parameterSets)+len(data))
	out = append(out, a.parameterSets...)
	return append(out, data...)
}

// ParameterSets returns the captured SPS/PPS unit, or nil before capture.
// Callers must not modify the returned slice.
func (a *BitstreamAssembler) ParameterSets() []byte {
	return a.parameterSets
}

// Pending returns the number of bytes accumulated for the current cycle.
func (a *BitstreamAssembler) Pending() int {
	return a.pending.Len()
}

// IsKeyFrame reports whether an access unit starts with an IDR slice right
// after a 4-byte start code. Units shorter than 5 bytes are never keyframes.
func IsKeyFrame(unit []byte) bool {
	return len(unit) >= 5 && unit[4] == idrNALHeader
}
