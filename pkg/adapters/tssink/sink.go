// Package tssink muxes the elementary stream into MPEG-TS.
package tssink

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/streaminfo"
)

// clockRate is the MPEG-TS timestamp rate.
const clockRate = 90000

// Sink writes one H.264 track. Pictures are timed at a constant frame rate.
type Sink struct {
	bw        *bufio.Writer
	c         io.Closer
	w         *mpegts.Writer
	track     *mpegts.Track
	frameRate int64
	pictures  int64
}

// New muxes into w at frameRate pictures per second.
func New(w io.WriteCloser, frameRate int) *Sink {
	bw := bufio.NewWriter(w)
	track := &mpegts.Track{
		Codec: &mpegts.CodecH264{},
	}

	return &Sink{
		bw:        bw,
		c:         w,
		w:         mpegts.NewWriter(bw, []*mpegts.Track{track}),
		track:     track,
		frameRate: int64(max(frameRate, 1)),
	}
}

// Create creates path on fs and muxes into it.
func Create(fs ports.FileSystem, path string, frameRate int) (*Sink, error) {
	w, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return New(w, frameRate), nil
}

// WriteFragment writes every picture of fragment as one access unit.
// The encoder produces no B-frames, so DTS equals PTS.
func (s *Sink) WriteFragment(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}

	pictures, err := streaminfo.SplitPictures(fragment)
	if err != nil {
		return err
	}

	for _, pic := range pictures {
		pts := s.pictures * clockRate / s.frameRate
		if err := s.w.WriteH264(s.track, pts, pts, pic.NALUs); err != nil {
			return fmt.Errorf("write picture %d: %w", s.pictures, err)
		}
		s.pictures++
	}
	return nil
}

// Pictures returns the number of pictures written.
func (s *Sink) Pictures() int64 {
	return s.pictures
}

// Close flushes and closes the output.
func (s *Sink) Close() error {
	flushErr := s.bw.Flush()
	closeErr := s.c.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

var _ ports.StreamSink = (*Sink)(nil)
