package ports

// StreamSink consumes the Annex-B fragments produced by an encoder session.
// Fragments must be written in the order they were produced; their
// concatenation is the elementary stream.
type StreamSink interface {
	// WriteFragment appends a fragment to the stream.
	WriteFragment(fragment []byte) error

	// Close flushes and releases the sink.
	Close() error
}
