// Package orchestrator wires a frame source, an encoder session and a stream
// sink together and runs the encode stage over them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/avcstream/pkg/adapters/filesink"
	"github.com/user/avcstream/pkg/adapters/imagesource"
	"github.com/user/avcstream/pkg/adapters/mp4sink"
	"github.com/user/avcstream/pkg/adapters/nullsink"
	"github.com/user/avcstream/pkg/adapters/patternsource"
	"github.com/user/avcstream/pkg/adapters/rawsource"
	"github.com/user/avcstream/pkg/adapters/tssink"
	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/pipeline"
	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/stages/encode"
	"github.com/user/avcstream/pkg/streaminfo"
)

// Source kinds.
const (
	SourcePattern = "pattern"
	SourceRaw     = "raw"
	SourceImages  = "images"
)

// ErrUnknownSource is returned for a source kind other than the ones above.
var ErrUnknownSource = errors.New("orchestrator: unknown source kind")

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind string
	// Path is the raw YV12 file or the image directory.
	Path string
	// Frames limits the pattern and raw sources. Zero means unlimited for
	// raw files and 300 frames for the pattern.
	Frames int
	// Hold is how many frames each still image is shown for.
	Hold int
}

// Config contains all configuration for one run.
type Config struct {
	// Session holds the encoder settings. Its Logger is ignored.
	Session avcencoder.Options
	Source  SourceConfig

	// OutputPath picks the sink by extension: .ts for MPEG-TS, .mp4 for
	// fragmented MP4, anything else for a raw Annex-B file. Empty or "-"
	// discards the stream.
	OutputPath string

	// MaxFrames stops the run early when positive.
	MaxFrames int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Session: avcencoder.Options{
			Width:            1280,
			Height:           720,
			FrameRate:        30,
			BitRate:          2_000_000,
			KeyFrameInterval: avcencoder.DefaultKeyFrameInterval,
			DrainTimeout:     avcencoder.DefaultDrainTimeout,
			FinishTimeout:    avcencoder.DefaultFinishTimeout,
		},
		Source: SourceConfig{
			Kind:   SourcePattern,
			Frames: 300,
			Hold:   30,
		},
	}
}

// Orchestrator runs encode pipelines against one codec provider.
type Orchestrator struct {
	provider ports.CodecProvider
	fs       ports.FileSystem
	logger   ports.Logger
}

// New creates a new Orchestrator.
func New(provider ports.CodecProvider, fs ports.FileSystem, logger ports.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		fs:       fs,
		logger:   logger,
	}
}

// Run opens the encoder, source and sink, encodes until the source ends and
// closes everything. The sink is closed even when encoding fails so that
// the partial stream is kept.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	o.logger.Info("Starting pipeline")
	started := time.Now()

	opts := config.Session
	opts.Logger = o.logger
	session, err := avcencoder.Open(o.provider, opts)
	if err != nil {
		o.logger.Error("Failed to open encoder: %s", err)
		return RunResult{}, fmt.Errorf("open encoder: %w", err)
	}
	defer session.Close()

	source, err := o.openSource(config.Source, session.Geometry())
	if err != nil {
		o.logger.Error("Failed to open source: %s", err)
		return RunResult{}, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			o.logger.Debug("Ignoring source close error: %v", err)
		}
	}()

	sink, err := o.openSink(config.OutputPath, config.Session)
	if err != nil {
		o.logger.Error("Failed to open output: %s", err)
		return RunResult{}, fmt.Errorf("open output: %w", err)
	}

	o.logger.Info("Encoding %s into %s", describeSource(config.Source), describeOutput(config.OutputPath))

	stage := encode.NewStage(session, o.logger)
	encoded, runErr := stage.Execute(ctx, pipeline.EncodeInput{
		Source:    source,
		Sink:      sink,
		MaxFrames: config.MaxFrames,
	})

	closeErr := sink.Close()

	result := RunResult{
		Encode:     encoded,
		Codec:      session.CodecName(),
		OutputPath: config.OutputPath,
		Width:      config.Session.Width,
		Height:     config.Session.Height,
		FrameRate:  config.Session.FrameRate,
		BitRate:    config.Session.BitRate,
		Elapsed:    time.Since(started),
	}
	if desc, err := streaminfo.DescribeParameterSets(encoded.ParameterSets); err == nil {
		result.Stream = &desc
		o.logger.Info("Parameter sets: %s profile, level %s, %dx%d", desc.Profile(), desc.Level(), desc.Width, desc.Height)
	} else {
		o.logger.Warn("Could not describe parameter sets: %v", err)
	}

	if runErr != nil {
		o.logger.Error("Failed to encode video: %s", runErr)
		return result, fmt.Errorf("encode stage: %w", runErr)
	}
	if closeErr != nil {
		o.logger.Error("Failed to write output: %s", closeErr)
		return result, fmt.Errorf("close output: %w", closeErr)
	}

	o.logger.Info("Pipeline completed successfully")
	return result, nil
}

func (o *Orchestrator) openSource(config SourceConfig, geom avcencoder.Geometry) (ports.FrameSource, error) {
	switch config.Kind {
	case SourcePattern, "":
		frames := config.Frames
		if frames <= 0 {
			frames = DefaultConfig().Source.Frames
		}
		return patternsource.New(geom, frames), nil
	case SourceRaw:
		return rawsource.Open(o.fs, config.Path, geom, config.Frames)
	case SourceImages:
		return imagesource.New(o.fs, config.Path, geom, config.Hold)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, config.Kind)
	}
}

func (o *Orchestrator) openSink(path string, opts avcencoder.Options) (ports.StreamSink, error) {
	if path == "" || path == "-" {
		return nullsink.New(), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts":
		return tssink.Create(o.fs, path, opts.FrameRate)
	case ".mp4":
		return mp4sink.Create(o.fs, path, opts.Width, opts.Height, opts.FrameRate)
	default:
		return filesink.Create(o.fs, path)
	}
}

func describeSource(config SourceConfig) string {
	if config.Kind == SourcePattern || config.Kind == "" {
		return SourcePattern
	}
	return config.Kind + ":" + config.Path
}

func describeOutput(path string) string {
	if path == "" || path == "-" {
		return "null"
	}
	return path
}

// RunResult contains the results of a pipeline run for summary generation.
type RunResult struct {
	Encode pipeline.EncodeResult
	Codec  string
	// Stream is nil when the encoder never produced parameter sets.
	Stream *streaminfo.Description

	OutputPath string
	Width      int
	Height     int
	FrameRate  int
	BitRate    int

	Elapsed time.Duration
}
