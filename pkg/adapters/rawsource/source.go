// Package rawsource reads fixed-size YV12 frames from a byte stream.
package rawsource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/ports"
)

// ErrTruncatedFrame is returned when the stream ends inside a frame.
var ErrTruncatedFrame = errors.New("rawsource: truncated frame")

// Source yields consecutive frames of geom.InputSize() bytes.
type Source struct {
	r     io.ReadCloser
	buf   []byte
	count int
	limit int
}

// New reads frames from r. A positive limit stops after that many frames.
func New(r io.ReadCloser, geom avcencoder.Geometry, limit int) *Source {
	return &Source{
		r:     r,
		buf:   make([]byte, geom.InputSize()),
		limit: limit,
	}
}

// Open opens path on fs and reads frames from it.
func Open(fs ports.FileSystem, path string, geom avcencoder.Geometry, limit int) (*Source, error) {
	r, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw frames: %w", err)
	}
	return New(r, geom, limit), nil
}

// Next returns the next frame. The slice is reused by the following call.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.limit > 0 && s.count >= s.limit {
		return nil, io.EOF
	}

	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: frame %d", ErrTruncatedFrame, s.count)
		}
		return nil, err
	}

	s.count++
	return s.buf, nil
}

// Close closes the underlying stream.
func (s *Source) Close() error {
	return s.r.Close()
}

var _ ports.FrameSource = (*Source)(nil)
