package ports

import "context"

// FrameSource produces raw YV12 frames laid out with the session strides.
type FrameSource interface {
	// Next returns the next frame. It returns io.EOF when the source is exhausted.
	// The returned slice may be reused by the next call.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the source.
	Close() error
}
