// Package imagesource turns a directory of PNG and JPEG files into frames.
// Each image is scaled to the frame size and held for a number of frames.
package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/yuv"
)

// ErrNoImages is returned when a directory holds no supported images.
var ErrNoImages = errors.New("imagesource: no images found")

// Source yields every image in a directory in name order.
type Source struct {
	fs    ports.FileSystem
	files []string
	geom  avcencoder.Geometry
	hold  int

	file    int
	shown   int
	current []byte
}

// New lists the images in dir. Each image is shown for hold frames (at least one).
func New(fs ports.FileSystem, dir string, geom avcencoder.Geometry, hold int) (*Source, error) {
	names, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var files []string
	for _, name := range names {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, name))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	return &Source{
		fs:    fs,
		files: files,
		geom:  geom,
		hold:  max(hold, 1),
	}, nil
}

// Files returns the image paths in display order.
func (s *Source) Files() []string {
	return s.files
}

// Next returns the next frame. The slice is reused by the following call.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.current == nil || s.shown >= s.hold {
		if s.current != nil {
			s.file++
		}
		if s.file >= len(s.files) {
			return nil, io.EOF
		}
		if err := s.load(s.files[s.file]); err != nil {
			return nil, err
		}
		s.shown = 0
	}

	s.shown++
	return s.current, nil
}

func (s *Source) load(path string) error {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	s.current = yuv.FromImage(s.current, Scale(img, s.geom.Width, s.geom.Height), s.geom)
	return nil
}

// Scale resizes img to width x height.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Close does nothing; images are read whole.
func (s *Source) Close() error {
	return nil
}

var _ ports.FrameSource = (*Source)(nil)
