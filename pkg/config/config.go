// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/orchestrator"
	"github.com/user/avcstream/pkg/ports"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents the full configuration for avcstream.
type Config struct {
	// Stream
	Width            int `yaml:"width"`
	Height           int `yaml:"height"`
	FPS              int `yaml:"fps"`
	Bitrate          int `yaml:"bitrate"`
	KeyFrameInterval int `yaml:"keyframe_interval"`

	// Encoder
	Codec           string `yaml:"codec"`
	HardwareOnly    bool   `yaml:"hardware_only"`
	FFmpegPath      string `yaml:"ffmpeg_path"`
	DrainTimeoutUs  int    `yaml:"drain_timeout_us"`
	FinishTimeoutMs int    `yaml:"finish_timeout_ms"`

	// Input/Output
	Source     SourceConfig `yaml:"source"`
	OutputPath string       `yaml:"output"`
	MaxFrames  int          `yaml:"max_frames"`
	Summary    string       `yaml:"summary"`

	// Logging
	LogLevel ports.LogLevel `yaml:"log_level"`
}

// SourceConfig represents the frame source settings.
type SourceConfig struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Frames int    `yaml:"frames"`
	Hold   int    `yaml:"hold"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	d := orchestrator.DefaultConfig()
	return Config{
		Width:            d.Session.Width,
		Height:           d.Session.Height,
		FPS:              d.Session.FrameRate,
		Bitrate:          d.Session.BitRate,
		KeyFrameInterval: d.Session.KeyFrameInterval,

		DrainTimeoutUs:  int(d.Session.DrainTimeout / time.Microsecond),
		FinishTimeoutMs: int(d.Session.FinishTimeout / time.Millisecond),

		Source: SourceConfig{
			Kind:   d.Source.Kind,
			Frames: d.Source.Frames,
			Hold:   d.Source.Hold,
		},

		LogLevel: ports.LevelInfo,
	}
}

// LoadFromFile loads configuration from a YAML file on top of Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the settings that can be checked without an encoder.
func (c Config) Validate() error {
	if _, err := avcencoder.NewGeometry(c.Width, c.Height); err != nil {
		return fmt.Errorf("%w: %dx%d: %w", ErrInvalid, c.Width, c.Height, err)
	}

	switch {
	case c.FPS < 1 || c.FPS > 1000:
		return fmt.Errorf("%w: fps %d out of range 1..1000", ErrInvalid, c.FPS)
	case c.Bitrate <= 0:
		return fmt.Errorf("%w: bitrate must be positive", ErrInvalid)
	case c.KeyFrameInterval < 0:
		return fmt.Errorf("%w: keyframe_interval must not be negative", ErrInvalid)
	case c.DrainTimeoutUs < 0 || c.FinishTimeoutMs < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	case c.MaxFrames < 0:
		return fmt.Errorf("%w: max_frames must not be negative", ErrInvalid)
	}

	switch c.Source.Kind {
	case orchestrator.SourcePattern, "":
	case orchestrator.SourceRaw, orchestrator.SourceImages:
		if c.Source.Path == "" {
			return fmt.Errorf("%w: source %s needs a path", ErrInvalid, c.Source.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalid, c.Source.Kind)
	}

	return nil
}

// ToSessionOptions converts the encoder settings to avcencoder.Options.
func (c Config) ToSessionOptions(logger ports.Logger) avcencoder.Options {
	return avcencoder.Options{
		Width:            c.Width,
		Height:           c.Height,
		FrameRate:        c.FPS,
		BitRate:          c.Bitrate,
		KeyFrameInterval: c.KeyFrameInterval,
		DrainTimeout:     time.Duration(c.DrainTimeoutUs) * time.Microsecond,
		FinishTimeout:    time.Duration(c.FinishTimeoutMs) * time.Millisecond,
		CodecName:        c.Codec,
		HardwareOnly:     c.HardwareOnly,
		Logger:           logger,
	}
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Session: c.ToSessionOptions(nil),
		Source: orchestrator.SourceConfig{
			Kind:   c.Source.Kind,
			Path:   c.Source.Path,
			Frames: c.Source.Frames,
			Hold:   c.Source.Hold,
		},
		OutputPath: c.OutputPath,
		MaxFrames:  c.MaxFrames,
	}
}
