// Package summarizer provides summary generation for encode runs.
package summarizer

import "time"

// Summary contains all data collected during an encode run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Encoder that produced the stream
	Encoder EncoderInfo

	// Run settings
	Settings Settings

	// Stream output details
	Stream StreamInfo
}

// EncoderInfo identifies the encoder and how long it ran.
type EncoderInfo struct {
	Name    string
	Elapsed time.Duration
}

// Settings contains the encode configuration.
type Settings struct {
	Width            int
	Height           int
	FPS              int
	Bitrate          int // bits per second
	KeyFrameInterval int // seconds
	Source           string
	Output           string
}

// StreamInfo contains information about the emitted stream.
type StreamInfo struct {
	Frames        int64
	Fragments     int
	Bytes         int64
	KeyFrames     int
	SkippedCycles int

	// Parameter set content; Profile is empty when none were captured.
	Profile     string
	Level       string
	CodedWidth  int
	CodedHeight int

	NALUs []NALUCount
}

// NALUCount is the number of NAL units of one type.
type NALUCount struct {
	Type  string
	Count int
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithEncoder sets the encoder name and the wall time of the run.
func (b *Builder) WithEncoder(name string, elapsed time.Duration) *Builder {
	b.summary.Encoder = EncoderInfo{
		Name:    name,
		Elapsed: elapsed,
	}
	return b
}

// WithSettings sets the run settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithStream sets stream output information.
func (b *Builder) WithStream(stream StreamInfo) *Builder {
	b.summary.Stream = stream
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}

// AverageBitrate returns the achieved bitrate in bits per second, or 0 when
// it cannot be computed.
func (s *Summary) AverageBitrate() float64 {
	if s.Stream.Frames == 0 || s.Settings.FPS == 0 {
		return 0
	}
	seconds := float64(s.Stream.Frames) / float64(s.Settings.FPS)
	return float64(s.Stream.Bytes) * 8 / seconds
}

// Speed returns stream duration divided by encode time, or 0 when unknown.
func (s *Summary) Speed() float64 {
	if s.Encoder.Elapsed <= 0 || s.Settings.FPS == 0 {
		return 0
	}
	seconds := float64(s.Stream.Frames) / float64(s.Settings.FPS)
	return seconds / s.Encoder.Elapsed.Seconds()
}
