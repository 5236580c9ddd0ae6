package avcencoder

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/avcstream/pkg/mocks"
	"github.com/user/avcstream/pkg/ports"
)

func testOptions() Options {
	return Options{
		Width:        640,
		Height:       480,
		FrameRate:    30,
		BitRate:      1_000_000,
		DrainTimeout: time.Millisecond,
	}
}

func openTestSession(t *testing.T, codec *mocks.Codec, opts Options) *Session {
	t.Helper()
	s, err := Open(mocks.NewCodecProvider(codec), opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSession_EncodeStream(t *testing.T) {
	codec := &mocks.Codec{Lag: 1}
	s := openTestSession(t, codec, testOptions())
	geom := s.Geometry()

	var (
		firstKeyFrame = -1
		keyFrames     int
		total         int
	)

	for i := 0; i < 60; i++ {
		out, err := s.Encode(makePlanarFrame(geom, byte(i)))
		require.NoError(t, err, "frame %d", i)

		if i == 0 {
			require.Empty(t, out, "nothing is emitted before the first frame drains")
			require.Equal(t, mocks.DefaultParameterSets, s.ParameterSets())
		}

		if len(out) > 0 && bytes.HasPrefix(out, s.ParameterSets()) {
			keyFrames++
			if firstKeyFrame < 0 {
				firstKeyFrame = i
			}
			require.True(t, IsKeyFrame(out[len(s.ParameterSets()):]), "prefixed fragment must start with an IDR slice")
		}
		total += len(out)
	}

	require.GreaterOrEqual(t, firstKeyFrame, 0, "expected a keyframe within 60 frames")
	require.Less(t, firstKeyFrame, 30)
	require.Equal(t, 2, keyFrames, "GOP of 30 frames over 59 drained frames")
	require.Equal(t, int64(60), s.FrameCount())
	require.Equal(t, 0, codec.OutstandingOutputs(), "every output buffer must be released")

	final, err := s.Finish()
	require.NoError(t, err)
	require.Len(t, final, 8, "the last lagged frame is flushed by Finish")
	total += len(final)

	paramsLen := len(mocks.DefaultParameterSets)
	require.Equal(t, 60*8+2*paramsLen, total)
}

func TestSession_ConfiguresEncoder(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	require.True(t, codec.Started)
	require.Equal(t, ports.CodecFormat{
		MimeType:         ports.MimeTypeAVC,
		Width:            640,
		Height:           480,
		BitRate:          1_000_000,
		FrameRate:        30,
		ColorFormat:      ports.ColorFormatYUV420Flexible,
		KeyFrameInterval: 1,
	}, codec.Format)
	require.Equal(t, mocks.MockEncoderName, s.CodecName())
}

func TestSession_StampsPresentationTimes(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	for i := 0; i < 5; i++ {
		_, err := s.Encode(makePlanarFrame(s.Geometry(), 0))
		require.NoError(t, err)
	}

	clock := NewPresentationClock(30)
	require.Len(t, codec.QueuedPTS, 5)
	for i, pts := range codec.QueuedPTS {
		require.Equal(t, clock.PTS(int64(i)), pts, "frame %d", i)
	}
	require.Equal(t, int64(132), codec.QueuedPTS[0])
}

func TestSession_FeedsConvertedFrame(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())
	geom := s.Geometry()

	frame := makePlanarFrame(geom, 5)
	frame[geom.LumaSize] = 0xAA
	frame[geom.LumaSize+geom.ChromaSize] = 0xBB

	_, err := s.Encode(frame)
	require.NoError(t, err)

	require.Equal(t, []int{geom.OutputSize()}, codec.QueuedSizes)
	require.Equal(t, frame[:geom.LumaSize], codec.LastInput[:geom.LumaSize])
	require.Equal(t, byte(0xBB), codec.LastInput[geom.LumaSize])
	require.Equal(t, byte(0xAA), codec.LastInput[geom.LumaSize+1])
}

func TestSession_FrameTooSmall(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	_, err := s.Encode(make([]byte, 16))
	require.ErrorIs(t, err, ErrFrameSize)
	require.Empty(t, codec.QueuedPTS)

	// A rejected frame does not break the session.
	_, err = s.Encode(makePlanarFrame(s.Geometry(), 0))
	require.NoError(t, err)
}

func TestSession_ParameterSetsMissing(t *testing.T) {
	codec := &mocks.Codec{ConfigUnit: []byte{0x00, 0x00, 0x01, 0x67, 0x42}}
	s := openTestSession(t, codec, testOptions())

	out, err := s.Encode(makePlanarFrame(s.Geometry(), 0))
	require.ErrorIs(t, err, ErrParameterSetsMissing)
	require.Empty(t, out)
	require.Nil(t, s.ParameterSets())
	require.Equal(t, 0, codec.OutstandingOutputs(), "the rejected buffer must still be released")

	// The session stays usable and the next start-coded unit is captured.
	_, err = s.Encode(makePlanarFrame(s.Geometry(), 1))
	require.NoError(t, err)
	require.NotNil(t, s.ParameterSets())
}

func TestSession_FeedFailureBreaksSession(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	_, err := s.Encode(makePlanarFrame(s.Geometry(), 0))
	require.NoError(t, err)

	queueErr := errors.New("codec gone")
	codec.QueueInputErr = queueErr

	_, err = s.Encode(makePlanarFrame(s.Geometry(), 1))
	require.ErrorIs(t, err, ErrSessionBroken)
	require.ErrorIs(t, err, queueErr)

	_, err = s.Encode(makePlanarFrame(s.Geometry(), 2))
	require.ErrorIs(t, err, ErrSessionBroken)
	require.Equal(t, int64(1), s.FrameCount())
}

func TestSession_DrainFailureReturnsPartialOutput(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	_, err := s.Encode(makePlanarFrame(s.Geometry(), 0))
	require.NoError(t, err)

	codec.DequeueOutputErr = errors.New("device lost")
	out, err := s.Encode(makePlanarFrame(s.Geometry(), 1))
	require.ErrorIs(t, err, ErrSessionBroken)
	require.Empty(t, out)

	_, err = s.Finish()
	require.ErrorIs(t, err, ErrSessionBroken)
}

func TestSession_DrainReturnsUnits(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	conv := NewFrameConverter(s.Geometry())
	frame, err := conv.Convert(makePlanarFrame(s.Geometry(), 0))
	require.NoError(t, err)
	require.NoError(t, s.Feed(frame))
	require.NoError(t, s.Feed(frame))

	units, err := s.Drain(time.Millisecond)
	require.NoError(t, err)
	require.Len(t, units, 3, "config unit plus two frames")
	require.Equal(t, mocks.DefaultParameterSets, units[0])
	require.True(t, IsKeyFrame(units[1]))
	require.False(t, IsKeyFrame(units[2]))
}

func TestSession_FeedRejectsOversizedFrame(t *testing.T) {
	codec := &mocks.Codec{}
	s := openTestSession(t, codec, testOptions())

	err := s.Feed(make([]byte, 640*480*4))
	require.ErrorIs(t, err, ErrSessionBroken)
}

func TestSession_Finish(t *testing.T) {
	codec := &mocks.Codec{Lag: 3}
	s := openTestSession(t, codec, testOptions())

	for i := 0; i < 3; i++ {
		out, err := s.Encode(makePlanarFrame(s.Geometry(), byte(i)))
		require.NoError(t, err)
		require.Empty(t, out)
	}

	final, err := s.Finish()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(final, mocks.DefaultParameterSets), "first flushed frame is an IDR")
	require.Len(t, final, len(mocks.DefaultParameterSets)+3*8)

	require.Equal(t, ports.BufferFlagEndOfStream, codec.QueuedFlags[len(codec.QueuedFlags)-1])

	_, err = s.Encode(makePlanarFrame(s.Geometry(), 0))
	require.ErrorIs(t, err, ErrSessionFinished)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	codec := &mocks.Codec{StopErr: errors.New("stop failed"), ReleaseErr: errors.New("release failed")}
	s, err := Open(mocks.NewCodecProvider(codec), testOptions())
	require.NoError(t, err)

	s.Close()
	s.Close()

	require.Equal(t, 1, codec.StopCalls)
	require.Equal(t, 1, codec.ReleaseCalls)

	_, err = s.Encode(makePlanarFrame(s.Geometry(), 0))
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestOpen_Failures(t *testing.T) {
	t.Run("invalid geometry", func(t *testing.T) {
		opts := testOptions()
		opts.Width = 641
		_, err := Open(mocks.NewCodecProvider(&mocks.Codec{}), opts)
		require.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("invalid frame rate", func(t *testing.T) {
		for _, fps := range []int{0, -1, maxFrameRate + 1} {
			opts := testOptions()
			opts.FrameRate = fps
			_, err := Open(mocks.NewCodecProvider(&mocks.Codec{}), opts)
			require.ErrorIs(t, err, ErrInvalidOptions, "fps %d", fps)
		}
	})

	t.Run("invalid bitrate", func(t *testing.T) {
		opts := testOptions()
		opts.BitRate = 0
		_, err := Open(mocks.NewCodecProvider(&mocks.Codec{}), opts)
		require.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("no capable encoder", func(t *testing.T) {
		provider := mocks.NewCodecProvider(&mocks.Codec{})
		provider.Infos[0].Capabilities[0].ColorFormats = []ports.ColorFormat{ports.ColorFormatYUV420Planar}

		_, err := Open(provider, testOptions())
		require.ErrorIs(t, err, ErrNoCapableEncoder)
		require.Empty(t, provider.CreatedNames)
	})

	t.Run("unknown codec name", func(t *testing.T) {
		opts := testOptions()
		opts.CodecName = "other.encoder"
		_, err := Open(mocks.NewCodecProvider(&mocks.Codec{}), opts)
		require.ErrorIs(t, err, ErrNoCapableEncoder)
	})

	t.Run("enumeration error", func(t *testing.T) {
		provider := mocks.NewCodecProvider(&mocks.Codec{})
		provider.CodecsErr = errors.New("no service")
		_, err := Open(provider, testOptions())
		require.ErrorIs(t, err, provider.CodecsErr)
	})

	t.Run("configure error releases codec", func(t *testing.T) {
		codec := &mocks.Codec{ConfigureErr: errors.New("bad format")}
		_, err := Open(mocks.NewCodecProvider(codec), testOptions())
		require.ErrorIs(t, err, codec.ConfigureErr)
		require.Equal(t, 1, codec.ReleaseCalls)
	})

	t.Run("start error releases codec", func(t *testing.T) {
		codec := &mocks.Codec{StartErr: errors.New("busy")}
		_, err := Open(mocks.NewCodecProvider(codec), testOptions())
		require.ErrorIs(t, err, codec.StartErr)
		require.Equal(t, 1, codec.ReleaseCalls)
		require.False(t, codec.Started)
	})
}
