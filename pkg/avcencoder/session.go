// Package avcencoder drives a hardware H.264 encoder: it converts planar
// frames to the encoder's semi-planar layout, runs the input/output buffer
// handshake and assembles an Annex-B stream in which every keyframe carries
// the parameter sets.
package avcencoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/user/avcstream/pkg/adapters/logger"
	"github.com/user/avcstream/pkg/codecselect"
	"github.com/user/avcstream/pkg/ports"
)

const (
	// DefaultKeyFrameInterval is the sync frame distance in seconds.
	DefaultKeyFrameInterval = 1
	// DefaultDrainTimeout is how long one output poll waits.
	DefaultDrainTimeout = 10 * time.Millisecond
	// DefaultFinishTimeout bounds the end-of-stream drain.
	DefaultFinishTimeout = 2 * time.Second
)

// Options configures a Session.
type Options struct {
	Width     int
	Height    int
	FrameRate int
	BitRate   int // bits per second

	// KeyFrameInterval in seconds. Zero means DefaultKeyFrameInterval.
	KeyFrameInterval int
	// DrainTimeout per output poll. Zero means DefaultDrainTimeout.
	DrainTimeout time.Duration
	// FinishTimeout bounds Finish. Zero means DefaultFinishTimeout.
	FinishTimeout time.Duration

	// CodecName pins the encoder; empty picks the first capable one.
	CodecName string
	// HardwareOnly refuses software encoders.
	HardwareOnly bool

	Logger ports.Logger
}

func (o Options) withDefaults() Options {
	if o.KeyFrameInterval == 0 {
		o.KeyFrameInterval = DefaultKeyFrameInterval
	}
	if o.DrainTimeout == 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.FinishTimeout == 0 {
		o.FinishTimeout = DefaultFinishTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoop()
	}
	return o
}

func (o Options) validate() error {
	switch {
	case o.FrameRate < 1 || o.FrameRate > maxFrameRate:
		return fmt.Errorf("%w: frame rate %d out of range 1..%d", ErrInvalidOptions, o.FrameRate, maxFrameRate)
	case o.BitRate <= 0:
		return fmt.Errorf("%w: bitrate must be positive", ErrInvalidOptions)
	case o.KeyFrameInterval < 0:
		return fmt.Errorf("%w: negative key-frame interval", ErrInvalidOptions)
	case o.DrainTimeout < 0 || o.FinishTimeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalidOptions)
	}
	return nil
}

// Session owns one started encoder and all per-stream state. It is not safe
// for concurrent use; run one Session per stream.
type Session struct {
	codec     ports.Codec
	codecName string
	log       ports.Logger

	geom      Geometry
	clock     PresentationClock
	converter *FrameConverter
	assembler BitstreamAssembler

	frameIndex    int64
	drainTimeout  time.Duration
	finishTimeout time.Duration

	broken   bool
	finished bool
	closed   bool
	eos      bool
}

// Open selects an encoder that accepts flexible 4:2:0 input, configures it
// for opts and starts it. On error nothing is left running.
func Open(provider ports.CodecProvider, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.Logger.WithComponent("encoder")

	geom, err := NewGeometry(opts.Width, opts.Height)
	if err != nil {
		return nil, err
	}

	codecs, err := provider.Codecs()
	if err != nil {
		return nil, fmt.Errorf("enumerate codecs: %w", err)
	}

	info, ok := codecselect.Select(codecs, codecselect.Criteria{
		MimeType:     ports.MimeTypeAVC,
		ColorFormat:  ports.ColorFormatYUV420Flexible,
		Name:         opts.CodecName,
		HardwareOnly: opts.HardwareOnly,
	})
	if !ok {
		return nil, ErrNoCapableEncoder
	}
	log.Debug("Selected encoder %s (hardware: %t)", info.Name, info.Hardware)

	codec, err := provider.CreateEncoderByName(info.Name)
	if err != nil {
		return nil, fmt.Errorf("create encoder %s: %w", info.Name, err)
	}

	format := ports.CodecFormat{
		MimeType:         ports.MimeTypeAVC,
		Width:            opts.Width,
		Height:           opts.Height,
		BitRate:          opts.BitRate,
		FrameRate:        opts.FrameRate,
		ColorFormat:      ports.ColorFormatYUV420Flexible,
		KeyFrameInterval: opts.KeyFrameInterval,
	}
	if err := codec.Configure(format); err != nil {
		releaseQuietly(codec, log)
		return nil, fmt.Errorf("configure encoder %s: %w", info.Name, err)
	}
	if err := codec.Start(); err != nil {
		releaseQuietly(codec, log)
		return nil, fmt.Errorf("start encoder %s: %w", info.Name, err)
	}

	log.Info("Encoder %s started: %dx%d at %d fps, %d bps", info.Name, opts.Width, opts.Height, opts.FrameRate, opts.BitRate)

	return &Session{
		codec:         codec,
		codecName:     info.Name,
		log:           log,
		geom:          geom,
		clock:         NewPresentationClock(opts.FrameRate),
		converter:     NewFrameConverter(geom),
		drainTimeout:  opts.DrainTimeout,
		finishTimeout: opts.FinishTimeout,
	}, nil
}

func releaseQuietly(codec ports.Codec, log ports.Logger) {
	if err := codec.Release(); err != nil {
		log.Debug("Ignoring encoder release error: %v", err)
	}
}

// Encode runs one frame cycle: convert raw, feed it, drain whatever the
// encoder has ready and return the assembled fragment. The fragment may be
// empty while the encoder lags behind its input.
//
// On a feed or drain failure the partial output of the cycle is returned
// along with an error wrapping ErrSessionBroken.
func (s *Session) Encode(raw []byte) ([]byte, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	converted, err := s.converter.Convert(raw)
	if err != nil {
		return nil, err
	}

	if err := s.Feed(converted); err != nil {
		return s.assembler.Emit(), err
	}

	err = s.drainEach(s.drainTimeout, s.push)
	if errors.Is(err, ErrParameterSetsMissing) {
		s.log.Warn("Encoder output has no parameter sets yet, frame %d produced no data", s.frameIndex-1)
	}
	return s.assembler.Emit(), err
}

// Feed submits one converted frame, waiting as long as needed for a free
// input buffer.
func (s *Session) Feed(frame []byte) error {
	if err := s.usable(); err != nil {
		return err
	}

	index, err := s.codec.DequeueInputBuffer(-1)
	if err != nil {
		return s.fail("dequeue input buffer", err)
	}

	buf, err := s.codec.InputBuffer(index)
	if err != nil {
		return s.fail("get input buffer", err)
	}
	if len(buf) < len(frame) {
		return s.fail("fill input buffer", fmt.Errorf("%w: have %d bytes, need %d", io.ErrShortBuffer, len(buf), len(frame)))
	}

	n := copy(buf, frame)
	pts := s.clock.PTS(s.frameIndex)
	if err := s.codec.QueueInputBuffer(index, 0, n, pts, 0); err != nil {
		return s.fail("queue input buffer", err)
	}

	s.frameIndex++
	return nil
}

// Drain collects every output unit that becomes ready within timeout of
// the previous one. Units are copied out and their buffers released.
func (s *Session) Drain(timeout time.Duration) ([][]byte, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	var units [][]byte
	err := s.drainEach(timeout, func(unit []byte) error {
		units = append(units, unit)
		return nil
	})
	return units, err
}

// Finish signals end of stream, drains the encoder until it reports end of
// stream or the finish timeout passes, and returns the final fragment.
// No frames can be encoded afterwards.
func (s *Session) Finish() ([]byte, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	s.finished = true

	index, err := s.codec.DequeueInputBuffer(s.finishTimeout)
	if err != nil {
		return nil, s.fail("dequeue end-of-stream buffer", err)
	}
	if err := s.codec.QueueInputBuffer(index, 0, 0, s.clock.PTS(s.frameIndex), ports.BufferFlagEndOfStream); err != nil {
		return nil, s.fail("queue end-of-stream buffer", err)
	}

	deadline := time.Now().Add(s.finishTimeout)
	for !s.eos && time.Now().Before(deadline) {
		if err := s.drainEach(s.drainTimeout, s.push); err != nil {
			return s.assembler.Emit(), err
		}
	}
	if !s.eos {
		s.log.Warn("Encoder did not reach end of stream within %d ms", s.finishTimeout.Milliseconds())
	}

	return s.assembler.Emit(), nil
}

// Close stops and releases the encoder. Errors are logged and dropped;
// calling Close more than once is harmless.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if err := s.codec.Stop(); err != nil {
		s.log.Debug("Ignoring encoder stop error: %v", err)
	}
	releaseQuietly(s.codec, s.log)
	s.log.Debug("Encoder %s released after %d frames", s.codecName, s.frameIndex)
}

// FrameCount returns the number of frames fed so far.
func (s *Session) FrameCount() int64 {
	return s.frameIndex
}

// ParameterSets returns the captured SPS/PPS unit, or nil before the encoder produced it.
func (s *Session) ParameterSets() []byte {
	return s.assembler.ParameterSets()
}

// CodecName returns the name of the selected encoder.
func (s *Session) CodecName() string {
	return s.codecName
}

// Geometry returns the frame layout of the session.
func (s *Session) Geometry() Geometry {
	return s.geom
}

func (s *Session) push(unit []byte) error {
	return s.assembler.Push(unit)
}

// drainEach hands every ready output unit to fn until a poll times out,
// the encoder reports end of stream, or fn fails.
func (s *Session) drainEach(timeout time.Duration, fn func(unit []byte) error) error {
	for {
		index, info, err := s.codec.DequeueOutputBuffer(timeout)
		if errors.Is(err, ports.ErrTryAgainLater) {
			return nil
		}
		if err != nil {
			return s.fail("dequeue output buffer", err)
		}

		unit, err := s.copyOutput(index, info)
		if err != nil {
			return err
		}

		s.log.Debug("Drained %d bytes (pts %d us, flags %#x)", len(unit), info.PresentationTimeUs, uint32(info.Flags))

		if info.Flags.Has(ports.BufferFlagEndOfStream) {
			s.eos = true
		}
		if err := fn(unit); err != nil {
			return err
		}
		if s.eos {
			return nil
		}
	}
}

// copyOutput copies the payload of an output buffer and releases it.
func (s *Session) copyOutput(index int, info ports.BufferInfo) ([]byte, error) {
	buf, err := s.codec.OutputBuffer(index)
	if err != nil {
		return nil, s.fail("get output buffer", err)
	}

	end := info.Offset + info.Size
	if info.Offset < 0 || info.Size < 0 || end > len(buf) {
		return nil, s.fail("read output buffer", fmt.Errorf("range %d+%d exceeds %d bytes", info.Offset, info.Size, len(buf)))
	}
	unit := bytes.Clone(buf[info.Offset:end])

	if err := s.codec.ReleaseOutputBuffer(index); err != nil {
		return nil, s.fail("release output buffer", err)
	}
	return unit, nil
}

func (s *Session) usable() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.broken:
		return ErrSessionBroken
	case s.finished:
		return ErrSessionFinished
	}
	return nil
}

// fail marks the session as broken. A failed codec is not recovered.
func (s *Session) fail(op string, err error) error {
	s.broken = true
	s.log.Error("Encoder failure during %s: %v", op, err)
	return fmt.Errorf("%w: %s: %w", ErrSessionBroken, op, err)
}
