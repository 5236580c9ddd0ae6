package mocks

import (
	"bytes"

	"github.com/user/avcstream/pkg/ports"
)

// StreamSink records every fragment written to it.
type StreamSink struct {
	Fragments [][]byte
	Closed    bool

	WriteErr error
}

func (m *StreamSink) WriteFragment(fragment []byte) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Fragments = append(m.Fragments, bytes.Clone(fragment))
	return nil
}

func (m *StreamSink) Close() error {
	m.Closed = true
	return nil
}

// Stream returns the concatenation of all fragments.
func (m *StreamSink) Stream() []byte {
	return bytes.Join(m.Fragments, nil)
}

var _ ports.StreamSink = (*StreamSink)(nil)
