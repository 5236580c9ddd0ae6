package mocks

import (
	"context"
	"io"

	"github.com/user/avcstream/pkg/ports"
)

// FrameSource yields a fixed list of frames, then io.EOF.
type FrameSource struct {
	Frames [][]byte
	Closed bool

	next int
}

func (m *FrameSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.next >= len(m.Frames) {
		return nil, io.EOF
	}
	frame := m.Frames[m.next]
	m.next++
	return frame, nil
}

func (m *FrameSource) Close() error {
	m.Closed = true
	return nil
}

var _ ports.FrameSource = (*FrameSource)(nil)
