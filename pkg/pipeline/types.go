package pipeline

import (
	"time"

	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/streaminfo"
)

// =============================================================================
// Encode Stage Types
// =============================================================================

// EncodeInput connects a frame source to a stream sink. The stage reads
// from Source until io.EOF and writes every non-empty fragment to Sink.
// Neither is closed by the stage.
type EncodeInput struct {
	Source ports.FrameSource
	Sink   ports.StreamSink

	// MaxFrames stops the run after this many frames when positive.
	MaxFrames int
}

// EncodeResult summarizes one encode run.
type EncodeResult struct {
	// RunID identifies the run in logs.
	RunID string

	Frames    int64
	Fragments int
	Bytes     int64
	KeyFrames int

	// SkippedCycles counts frames whose output was dropped because the
	// encoder had not produced parameter sets yet.
	SkippedCycles int

	// ParameterSets is the SPS/PPS blob repeated in front of keyframes.
	ParameterSets []byte

	Stats    streaminfo.Stats
	Duration time.Duration
}
