// Package avcstream provides a high-level API for encoding frames into an
// H.264 stream.
package avcstream

import (
	"time"

	"github.com/user/avcstream/pkg/orchestrator"
)

// QualityPreset represents a bitrate preset name.
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
)

// BitsPerPixel returns the bits spent per pixel per frame for the preset.
func BitsPerPixel(preset QualityPreset) float64 {
	switch preset {
	case QualityLow:
		return 0.05
	case QualityHigh:
		return 0.2
	default: // medium
		return 0.1
	}
}

// Config represents the configuration for one encode run.
type Config struct {
	// Frame size
	Width  int
	Height int

	// Rate control
	FPS              int
	Bitrate          int // bits per second, 0 derives it from Quality
	Quality          QualityPreset
	KeyFrameInterval int // seconds

	// Encoder selection
	Codec        string
	HardwareOnly bool

	// Source
	Source orchestrator.SourceConfig

	// Output path; the extension picks the container
	Output    string
	MaxFrames int

	// Timeouts
	DrainTimeout  time.Duration
	FinishTimeout time.Duration
}

// ConfigBuilder provides a fluent interface for building Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new ConfigBuilder with 720p defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: hdDefaults(),
	}
}

// NewSDConfigBuilder creates a new ConfigBuilder with 480p defaults.
func NewSDConfigBuilder() *ConfigBuilder {
	cfg := hdDefaults()
	cfg.Width = 640
	cfg.Height = 480
	return &ConfigBuilder{
		config: cfg,
	}
}

func hdDefaults() Config {
	d := orchestrator.DefaultConfig()
	return Config{
		Width:            d.Session.Width,
		Height:           d.Session.Height,
		FPS:              d.Session.FrameRate,
		Quality:          QualityMedium,
		KeyFrameInterval: d.Session.KeyFrameInterval,
		Source:           d.Source,
		DrainTimeout:     d.Session.DrainTimeout,
		FinishTimeout:    d.Session.FinishTimeout,
	}
}

// Build returns the final Config, applying constraints.
func (b *ConfigBuilder) Build() Config {
	cfg := b.config

	// Encoders need even dimensions
	cfg.Width &^= 1
	cfg.Height &^= 1
	if cfg.Width < 2 {
		cfg.Width = 2
	}
	if cfg.Height < 2 {
		cfg.Height = 2
	}

	if cfg.FPS < 1 {
		cfg.FPS = 1
	}
	if cfg.KeyFrameInterval < 1 {
		cfg.KeyFrameInterval = 1
	}
	if cfg.Bitrate <= 0 {
		cfg.Bitrate = EstimateBitrate(cfg.Width, cfg.Height, cfg.FPS, cfg.Quality)
	}

	return cfg
}

// WithSize sets the frame size.
// Odd values are rounded down to the next even number.
func (b *ConfigBuilder) WithSize(width, height int) *ConfigBuilder {
	b.config.Width = width
	b.config.Height = height
	return b
}

// WithFPS sets the frame rate.
func (b *ConfigBuilder) WithFPS(fps int) *ConfigBuilder {
	b.config.FPS = fps
	return b
}

// WithBitrate sets an explicit bitrate in bits per second.
func (b *ConfigBuilder) WithBitrate(bps int) *ConfigBuilder {
	b.config.Bitrate = bps
	return b
}

// WithQualityPreset derives the bitrate from a preset unless WithBitrate is used.
func (b *ConfigBuilder) WithQualityPreset(preset QualityPreset) *ConfigBuilder {
	b.config.Quality = preset
	return b
}

// WithKeyFrameInterval sets the keyframe distance in seconds.
func (b *ConfigBuilder) WithKeyFrameInterval(sec int) *ConfigBuilder {
	b.config.KeyFrameInterval = sec
	return b
}

// WithCodec pins the encoder by name.
func (b *ConfigBuilder) WithCodec(name string) *ConfigBuilder {
	b.config.Codec = name
	return b
}

// WithHardwareOnly refuses software encoders.
func (b *ConfigBuilder) WithHardwareOnly(only bool) *ConfigBuilder {
	b.config.HardwareOnly = only
	return b
}

// WithPatternSource encodes a generated test pattern.
func (b *ConfigBuilder) WithPatternSource(frames int) *ConfigBuilder {
	b.config.Source = orchestrator.SourceConfig{Kind: orchestrator.SourcePattern, Frames: frames}
	return b
}

// WithRawSource encodes a raw YV12 file. frames of 0 reads to the end.
func (b *ConfigBuilder) WithRawSource(path string, frames int) *ConfigBuilder {
	b.config.Source = orchestrator.SourceConfig{Kind: orchestrator.SourceRaw, Path: path, Frames: frames}
	return b
}

// WithImageSource encodes the images of a directory, each shown for hold frames.
func (b *ConfigBuilder) WithImageSource(dir string, hold int) *ConfigBuilder {
	b.config.Source = orchestrator.SourceConfig{Kind: orchestrator.SourceImages, Path: dir, Hold: hold}
	return b
}

// WithOutput sets the output path.
func (b *ConfigBuilder) WithOutput(path string) *ConfigBuilder {
	b.config.Output = path
	return b
}

// WithMaxFrames stops the run after n frames.
func (b *ConfigBuilder) WithMaxFrames(n int) *ConfigBuilder {
	b.config.MaxFrames = n
	return b
}

// EstimateBitrate returns a bitrate for the frame size, rate and preset.
func EstimateBitrate(width, height, fps int, preset QualityPreset) int {
	return int(float64(width*height*fps) * BitsPerPixel(preset))
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()

	cfg.Session.Width = c.Width
	cfg.Session.Height = c.Height
	cfg.Session.FrameRate = c.FPS
	cfg.Session.BitRate = c.Bitrate
	cfg.Session.KeyFrameInterval = c.KeyFrameInterval
	cfg.Session.CodecName = c.Codec
	cfg.Session.HardwareOnly = c.HardwareOnly
	if c.DrainTimeout > 0 {
		cfg.Session.DrainTimeout = c.DrainTimeout
	}
	if c.FinishTimeout > 0 {
		cfg.Session.FinishTimeout = c.FinishTimeout
	}

	cfg.Source = c.Source
	cfg.OutputPath = c.Output
	cfg.MaxFrames = c.MaxFrames
	return cfg
}
