package avcencoder

// Geometry holds the plane layout of a frame. It is computed once per session.
type Geometry struct {
	Width        int
	Height       int
	LumaStride   int
	ChromaStride int
	LumaSize     int
	ChromaSize   int
	HalfWidth    int
	HalfHeight   int
}

// NewGeometry computes the strides and plane sizes for a width x height frame.
func NewGeometry(width, height int) (Geometry, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return Geometry{}, ErrInvalidGeometry
	}

	lumaStride := (width + 15) / 16 * 16
	chromaStride := (width + 31) / 32 * 16

	return Geometry{
		Width:        width,
		Height:       height,
		LumaStride:   lumaStride,
		ChromaStride: chromaStride,
		LumaSize:     lumaStride * height,
		ChromaSize:   chromaStride * height / 2,
		HalfWidth:    width / 2,
		HalfHeight:   height / 2,
	}, nil
}

// InputSize is the number of bytes of a planar input frame: luma followed
// by two chroma planes of ChromaSize bytes each.
func (g Geometry) InputSize() int {
	return g.LumaSize + 2*g.ChromaSize
}

// OutputSize is the number of bytes of a converted semi-planar frame.
func (g Geometry) OutputSize() int {
	return g.LumaSize + 2*g.HalfWidth*g.HalfHeight
}

// FrameConverter rewrites planar frames into the semi-planar layout the
// encoder consumes. It owns a single output buffer that every call reuses.
type FrameConverter struct {
	geom Geometry
	out  []byte
}

// NewFrameConverter allocates the scratch buffer for geom.
func NewFrameConverter(geom Geometry) *FrameConverter {
	return &FrameConverter{
		geom: geom,
		out:  make([]byte, geom.OutputSize()),
	}
}

// Geometry returns the layout the converter was built for.
func (c *FrameConverter) Geometry() Geometry {
	return c.geom
}

// Convert interleaves the two chroma planes of src behind its luma plane.
// For every chroma sample the second plane is written first, so a YV12
// frame (V plane, then U plane) comes out as NV12 (U, V pairs).
//
// The returned slice is the converter's buffer and is overwritten by the
// next call.
func (c *FrameConverter) Convert(src []byte) ([]byte, error) {
	g := c.geom
	if len(src) < g.InputSize() {
		return nil, ErrFrameSize
	}

	// Luma rows are LumaStride wide on both sides, so the plane copies as one block.
	copy(c.out[:g.LumaSize], src[:g.LumaSize])

	planeA := src[g.LumaSize : g.LumaSize+g.ChromaSize]
	planeB := src[g.LumaSize+g.ChromaSize : g.LumaSize+2*g.ChromaSize]
	chroma := c.out[g.LumaSize:]

	for i := 0; i < g.HalfHeight; i++ {
		rowIn := i * g.ChromaStride
		rowOut := i * g.HalfWidth * 2
		for j := 0; j < g.HalfWidth; j++ {
			chroma[rowOut+2*j] = planeB[rowIn+j]
			chroma[rowOut+2*j+1] = planeA[rowIn+j]
		}
	}

	return c.out, nil
}
