package avcencoder

import "errors"

var (
	// ErrInvalidGeometry is returned when the frame dimensions cannot be encoded.
	ErrInvalidGeometry = errors.New("avcencoder: width and height must be positive and even")

	// ErrInvalidOptions is returned when session options are out of range.
	ErrInvalidOptions = errors.New("avcencoder: invalid options")

	// ErrFrameSize is returned when a raw frame is smaller than the session geometry requires.
	ErrFrameSize = errors.New("avcencoder: frame too small for geometry")

	// ErrNoCapableEncoder is returned when no encoder supports the flexible 4:2:0 color format.
	ErrNoCapableEncoder = errors.New("avcencoder: no encoder supports flexible YUV 4:2:0 input")

	// ErrParameterSetsMissing is returned when the first encoder output does not
	// start with an Annex-B start code, meaning the codec has not finished configuring.
	ErrParameterSetsMissing = errors.New("avcencoder: first encoder output is not a parameter set unit")

	// ErrSessionBroken is returned once a feed or drain failure has left the codec unusable.
	ErrSessionBroken = errors.New("avcencoder: session is broken")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("avcencoder: session closed")

	// ErrSessionFinished is returned when frames are encoded after Finish.
	ErrSessionFinished = errors.New("avcencoder: session already finished")
)
