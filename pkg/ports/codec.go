package ports

import (
	"errors"
	"time"
)

// MimeTypeAVC is the media type of H.264/AVC encoders.
const MimeTypeAVC = "video/avc"

// ErrTryAgainLater is returned by a Codec when no buffer became available
// within the requested timeout.
var ErrTryAgainLater = errors.New("codec: try again later")

// ColorFormat identifies a raw pixel layout accepted by an encoder.
// Values follow the Android MediaCodecInfo constants so that descriptors
// coming from different platforms compare the same way.
type ColorFormat int

const (
	// ColorFormatYUV420Planar is I420/YV12 style fully planar 4:2:0.
	ColorFormatYUV420Planar ColorFormat = 19
	// ColorFormatYUV420SemiPlanar is NV12 style 4:2:0 with interleaved chroma.
	ColorFormatYUV420SemiPlanar ColorFormat = 21
	// ColorFormatYUV420Flexible means the encoder accepts any 4:2:0 layout
	// it can describe, including semi-planar.
	ColorFormatYUV420Flexible ColorFormat = 0x7F420888
)

// String returns the short name of the color format.
func (f ColorFormat) String() string {
	switch f {
	case ColorFormatYUV420Planar:
		return "yuv420p"
	case ColorFormatYUV420SemiPlanar:
		return "nv12"
	case ColorFormatYUV420Flexible:
		return "yuv420flexible"
	default:
		return "unknown"
	}
}

// BufferFlags annotate queued input and dequeued output buffers.
type BufferFlags uint32

const (
	// BufferFlagKeyFrame marks an output buffer holding a sync frame.
	BufferFlagKeyFrame BufferFlags = 1 << iota
	// BufferFlagCodecConfig marks an output buffer holding parameter sets only.
	BufferFlagCodecConfig
	// BufferFlagEndOfStream marks the last input or output buffer of a stream.
	BufferFlagEndOfStream
)

// Has reports whether all bits of flag are set.
func (f BufferFlags) Has(flag BufferFlags) bool {
	return f&flag == flag
}

// BufferInfo describes a dequeued output buffer.
type BufferInfo struct {
	Offset             int
	Size               int
	PresentationTimeUs int64
	Flags              BufferFlags
}

// CodecCapabilities lists what an encoder supports for one media type.
type CodecCapabilities struct {
	MimeType     string
	ColorFormats []ColorFormat
}

// CodecInfo describes one encoder implementation offered by a provider.
type CodecInfo struct {
	Name         string
	Encoder      bool
	Hardware     bool
	Capabilities []CodecCapabilities
}

// CapabilitiesFor returns the capabilities for mimeType, if any.
func (c CodecInfo) CapabilitiesFor(mimeType string) (CodecCapabilities, bool) {
	for _, caps := range c.Capabilities {
		if caps.MimeType == mimeType {
			return caps, true
		}
	}
	return CodecCapabilities{}, false
}

// CodecFormat is the configuration handed to Codec.Configure.
type CodecFormat struct {
	MimeType    string
	Width       int
	Height      int
	BitRate     int // bits per second
	FrameRate   int
	ColorFormat ColorFormat
	// KeyFrameInterval is the distance between sync frames in seconds.
	KeyFrameInterval int
}

// Codec abstracts a hardware video encoder driven through an indexed
// input/output buffer handshake.
type Codec interface {
	// Configure applies the encoding parameters. Must be called before Start.
	Configure(format CodecFormat) error

	// Start transitions the codec to the executing state.
	Start() error

	// Stop halts encoding. Buffers are invalid afterwards.
	Stop() error

	// Release frees the underlying encoder. The codec must not be used after.
	Release() error

	// DequeueInputBuffer returns the index of a free input buffer.
	// A negative timeout waits indefinitely. Returns ErrTryAgainLater on timeout.
	DequeueInputBuffer(timeout time.Duration) (int, error)

	// InputBuffer returns the writable memory of a dequeued input buffer.
	InputBuffer(index int) ([]byte, error)

	// QueueInputBuffer submits size bytes starting at offset of the input buffer.
	QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags BufferFlags) error

	// DequeueOutputBuffer waits up to timeout for an encoded buffer.
	// Returns ErrTryAgainLater when nothing became ready.
	DequeueOutputBuffer(timeout time.Duration) (int, BufferInfo, error)

	// OutputBuffer returns the memory of a dequeued output buffer.
	// The data is only valid until ReleaseOutputBuffer is called.
	OutputBuffer(index int) ([]byte, error)

	// ReleaseOutputBuffer returns an output buffer to the codec.
	ReleaseOutputBuffer(index int) error
}

// CodecProvider enumerates and instantiates encoders.
type CodecProvider interface {
	// Codecs returns the descriptors of every codec the provider can create.
	Codecs() ([]CodecInfo, error)

	// CreateEncoderByType instantiates the provider's default encoder for mimeType.
	CreateEncoderByType(mimeType string) (Codec, error)

	// CreateEncoderByName instantiates the named encoder.
	CreateEncoderByName(name string) (Codec, error)
}
