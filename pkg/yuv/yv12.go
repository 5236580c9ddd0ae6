// Package yuv packs images into the planar YV12 frame layout that encoder
// sessions consume.
package yuv

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/user/avcstream/pkg/avcencoder"
)

// FromImage converts img into a YV12 frame for geom, reusing dst when it is
// large enough. The frame holds LumaStride-wide luma rows, then the V plane,
// then the U plane, each ChromaStride wide. img is cropped to geom, not
// scaled; pixels outside img stay black.
func FromImage(dst []byte, img image.Image, geom avcencoder.Geometry) []byte {
	size := geom.InputSize()
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, geom.Width, geom.Height))
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	luma := dst[:geom.LumaSize]
	planeV := dst[geom.LumaSize : geom.LumaSize+geom.ChromaSize]
	planeU := dst[geom.LumaSize+geom.ChromaSize:]

	// Black padding.
	for i := range planeV {
		planeV[i] = 128
		planeU[i] = 128
	}
	for i := range luma {
		luma[i] = 16
	}

	width := min(geom.Width, rgba.Bounds().Dx())
	height := min(geom.Height, rgba.Bounds().Dy())

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*rgba.Stride + x*4
			r := int(rgba.Pix[idx])
			g := int(rgba.Pix[idx+1])
			b := int(rgba.Pix[idx+2])

			luma[y*geom.LumaStride+x] = clamp(((66*r + 129*g + 25*b + 128) >> 8) + 16)

			if y%2 == 0 && x%2 == 0 {
				c := (y/2)*geom.ChromaStride + x/2
				planeU[c] = clamp(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
				planeV[c] = clamp(((112*r - 94*g - 18*b + 128) >> 8) + 128)
			}
		}
	}

	return dst
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
