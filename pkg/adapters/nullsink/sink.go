// Package nullsink provides a stream sink that discards everything.
package nullsink

import "github.com/user/avcstream/pkg/ports"

// Sink is a no-op implementation of ports.StreamSink.
type Sink struct{}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// WriteFragment does nothing.
func (s *Sink) WriteFragment(fragment []byte) error {
	return nil
}

// Close does nothing.
func (s *Sink) Close() error {
	return nil
}

// Ensure Sink implements ports.StreamSink
var _ ports.StreamSink = (*Sink)(nil)
