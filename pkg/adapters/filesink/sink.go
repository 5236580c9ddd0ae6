// Package filesink writes the elementary stream to a file as raw Annex-B.
package filesink

import (
	"bufio"
	"fmt"
	"io"

	"github.com/user/avcstream/pkg/ports"
)

// Sink appends fragments to a file.
type Sink struct {
	bw    *bufio.Writer
	c     io.Closer
	bytes int64
}

// New writes fragments to w and closes it on Close.
func New(w io.WriteCloser) *Sink {
	return &Sink{bw: bufio.NewWriter(w), c: w}
}

// Create creates path on fs and writes fragments to it.
func Create(fs ports.FileSystem, path string) (*Sink, error) {
	w, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return New(w), nil
}

// WriteFragment appends fragment to the file.
func (s *Sink) WriteFragment(fragment []byte) error {
	n, err := s.bw.Write(fragment)
	s.bytes += int64(n)
	return err
}

// Bytes returns the number of bytes written so far.
func (s *Sink) Bytes() int64 {
	return s.bytes
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	flushErr := s.bw.Flush()
	closeErr := s.c.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Ensure Sink implements ports.StreamSink
var _ ports.StreamSink = (*Sink)(nil)
