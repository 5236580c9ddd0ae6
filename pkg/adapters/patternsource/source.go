// Package patternsource renders synthetic test frames: color bars, a box
// that moves one step per frame and a frame counter.
package patternsource

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/yuv"
)

// bars are the 75% color bars, left to right.
var bars = []color.RGBA{
	{191, 191, 191, 255},
	{191, 191, 0, 255},
	{0, 191, 191, 255},
	{0, 191, 0, 255},
	{191, 0, 191, 255},
	{191, 0, 0, 255},
	{0, 0, 191, 255},
}

// Source renders a fixed number of frames.
type Source struct {
	geom   avcencoder.Geometry
	frames int
	index  int
	buf    []byte
}

// New creates a source of frames pattern frames for geom.
func New(geom avcencoder.Geometry, frames int) *Source {
	return &Source{geom: geom, frames: frames}
}

// Next renders the next frame. The slice is reused by the following call.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index >= s.frames {
		return nil, io.EOF
	}

	dc := Render(s.geom.Width, s.geom.Height, s.index)
	s.buf = yuv.FromImage(s.buf, dc.Image(), s.geom)
	s.index++
	return s.buf, nil
}

// Close does nothing.
func (s *Source) Close() error {
	return nil
}

// Render draws pattern frame index.
func Render(width, height, index int) *gg.Context {
	dc := gg.NewContext(width, height)
	w, h := float64(width), float64(height)

	barWidth := w / float64(len(bars))
	for i, c := range bars {
		dc.SetColor(c)
		dc.DrawRectangle(float64(i)*barWidth, 0, barWidth+1, h)
		dc.Fill()
	}

	// The box bounces horizontally, 4 pixels per frame.
	size := max(h/6, 4)
	x := 0.0
	if span := w - size; span > 0 {
		x = math.Mod(float64(index*4), 2*span)
		if x > span {
			x = 2*span - x
		}
	}
	dc.SetColor(color.White)
	dc.DrawRectangle(x, (h-size)/2, size, size)
	dc.Fill()

	dc.SetColor(color.Black)
	dc.DrawRectangle(0, h-24, w, 24)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(fmt.Sprintf("frame %d", index), w/2, h-12, 0.5, 0.5)

	return dc
}

var _ ports.FrameSource = (*Source)(nil)
