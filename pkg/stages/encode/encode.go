// Package encode implements the stage that runs frames through an encoder
// session and streams the resulting fragments.
package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/pipeline"
	"github.com/user/avcstream/pkg/ports"
)

// FrameEncoder is the part of an encoder session the stage drives.
type FrameEncoder interface {
	Encode(raw []byte) ([]byte, error)
	Finish() ([]byte, error)
	FrameCount() int64
	ParameterSets() []byte
}

var _ FrameEncoder = (*avcencoder.Session)(nil)

var _ pipeline.Stage[pipeline.EncodeInput, pipeline.EncodeResult] = (*Stage)(nil)

// Stage encodes every frame of a source into a sink.
type Stage struct {
	encoder FrameEncoder
	logger  ports.Logger
}

// NewStage creates a new encode stage.
func NewStage(encoder FrameEncoder, logger ports.Logger) *Stage {
	return &Stage{
		encoder: encoder,
		logger:  logger.WithComponent("encode"),
	}
}

// Execute reads frames until the source is exhausted, then finishes the
// encoder. A cycle rejected for missing parameter sets is counted and
// skipped; any other error ends the run. The result is valid on error too.
func (s *Stage) Execute(ctx context.Context, input pipeline.EncodeInput) (pipeline.EncodeResult, error) {
	result := pipeline.EncodeResult{RunID: uuid.NewString()}
	start := time.Now()

	s.logger.Debug("Run %s started", result.RunID)

	for input.MaxFrames <= 0 || s.encoder.FrameCount() < int64(input.MaxFrames) {
		select {
		case <-ctx.Done():
			return s.finalize(result, start), ctx.Err()
		default:
		}

		frame, err := input.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.finalize(result, start), fmt.Errorf("read frame %d: %w", s.encoder.FrameCount(), err)
		}

		out, err := s.encoder.Encode(frame)
		if werr := s.write(&result, input.Sink, out); werr != nil {
			return s.finalize(result, start), werr
		}
		if errors.Is(err, avcencoder.ErrParameterSetsMissing) {
			result.SkippedCycles++
			continue
		}
		if err != nil {
			return s.finalize(result, start), fmt.Errorf("encode frame %d: %w", s.encoder.FrameCount(), err)
		}
	}

	out, err := s.encoder.Finish()
	if werr := s.write(&result, input.Sink, out); werr != nil {
		return s.finalize(result, start), werr
	}
	if err != nil {
		return s.finalize(result, start), fmt.Errorf("finish: %w", err)
	}

	result = s.finalize(result, start)
	s.logger.Info("Encoded %d frames into %d bytes (%d keyframes)", result.Frames, result.Bytes, result.KeyFrames)
	return result, nil
}

// finalize fills the fields taken from the encoder.
func (s *Stage) finalize(result pipeline.EncodeResult, start time.Time) pipeline.EncodeResult {
	result.Frames = s.encoder.FrameCount()
	result.ParameterSets = s.encoder.ParameterSets()
	result.Duration = time.Since(start)
	return result
}

func (s *Stage) write(result *pipeline.EncodeResult, sink ports.StreamSink, fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}

	if err := sink.WriteFragment(fragment); err != nil {
		return fmt.Errorf("write fragment %d: %w", result.Fragments, err)
	}

	result.Fragments++
	result.Bytes += int64(len(fragment))
	if isKeyFragment(fragment, s.encoder.ParameterSets()) {
		result.KeyFrames++
	}
	if err := result.Stats.Add(fragment); err != nil {
		s.logger.Warn("Could not parse fragment: %v", err)
	}
	return nil
}

// isKeyFragment reports whether fragment holds an IDR slice, either bare or
// behind the parameter sets.
func isKeyFragment(fragment, params []byte) bool {
	if len(params) > 0 && bytes.HasPrefix(fragment, params) {
		fragment = fragment[len(params):]
	}
	return avcencoder.IsKeyFrame(fragment)
}
