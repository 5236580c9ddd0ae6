package avcencoder

// ptsBaseOffsetUs keeps the first timestamp away from zero, which some
// encoders treat as "unset".
const ptsBaseOffsetUs = 132

// maxFrameRate bounds the frame rate so that integer microsecond
// timestamps stay strictly increasing.
const maxFrameRate = 1_000_000

// PresentationClock derives encoder presentation timestamps from the frame
// index. It never reads the wall clock.
type PresentationClock struct {
	frameRate int64
}

// NewPresentationClock creates a clock for frameRate frames per second.
// frameRate must be in 1..1_000_000.
func NewPresentationClock(frameRate int) PresentationClock {
	return PresentationClock{frameRate: int64(frameRate)}
}

// PTS returns the presentation timestamp in microseconds of frame frameIndex.
func (c PresentationClock) PTS(frameIndex int64) int64 {
	return ptsBaseOffsetUs + frameIndex*1_000_000/c.frameRate
}
