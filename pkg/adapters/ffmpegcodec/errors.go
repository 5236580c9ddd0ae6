package ffmpegcodec

import "errors"

var (
	// ErrFFmpegNotFound is returned when no ffmpeg executable can be located.
	ErrFFmpegNotFound = errors.New("ffmpegcodec: ffmpeg not found")

	// ErrUnknownEncoder is returned for encoder names ffmpeg does not offer.
	ErrUnknownEncoder = errors.New("ffmpegcodec: unknown encoder")

	// ErrInvalidState is returned when a codec method is called out of order.
	ErrInvalidState = errors.New("ffmpegcodec: invalid codec state")

	// ErrBadIndex is returned for buffer indices the codec did not hand out.
	ErrBadIndex = errors.New("ffmpegcodec: bad buffer index")

	// ErrProcessExited is returned when ffmpeg stopped before end of stream.
	ErrProcessExited = errors.New("ffmpegcodec: ffmpeg exited")
)
