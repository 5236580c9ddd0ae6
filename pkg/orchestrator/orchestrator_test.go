package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/avcstream/pkg/adapters/logger"
	"github.com/user/avcstream/pkg/avcencoder"
	"github.com/user/avcstream/pkg/mocks"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.Width = 64
	cfg.Session.Height = 48
	cfg.Session.DrainTimeout = time.Millisecond
	cfg.Session.FinishTimeout = 100 * time.Millisecond
	cfg.Source.Frames = 45
	return cfg
}

func TestOrchestrator_Run(t *testing.T) {
	fs := mocks.NewFileSystem()
	codec := &mocks.Codec{Lag: 2}
	orch := New(mocks.NewCodecProvider(codec), fs, logger.NewNoop())

	cfg := testConfig()
	cfg.OutputPath = "out/stream.h264"

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Encode.Frames != 45 {
		t.Errorf("expected 45 frames, got %d", result.Encode.Frames)
	}
	if result.Encode.KeyFrames != 2 {
		t.Errorf("expected 2 keyframes, got %d", result.Encode.KeyFrames)
	}
	if result.Codec != mocks.MockEncoderName {
		t.Errorf("expected codec %s, got %s", mocks.MockEncoderName, result.Codec)
	}
	if result.Stream == nil {
		t.Fatal("expected a stream description")
	}
	if result.Stream.Profile() != "High" {
		t.Errorf("expected High profile, got %s", result.Stream.Profile())
	}

	data, ok := fs.GetFile("out/stream.h264")
	if !ok {
		t.Fatal("output file was not created")
	}
	if int64(len(data)) != result.Encode.Bytes {
		t.Errorf("file has %d bytes, result counts %d", len(data), result.Encode.Bytes)
	}
	if !bytes.HasPrefix(data, mocks.DefaultParameterSets) {
		t.Error("output must start with the parameter sets")
	}

	if codec.ReleaseCalls != 1 {
		t.Errorf("expected the codec to be released once, got %d", codec.ReleaseCalls)
	}
}

func TestOrchestrator_Run_Sinks(t *testing.T) {
	tests := []struct {
		path  string
		check func(t *testing.T, data []byte)
	}{
		{
			path: "stream.ts",
			check: func(t *testing.T, data []byte) {
				if len(data) == 0 || len(data)%188 != 0 {
					t.Errorf("expected whole 188-byte packets, got %d bytes", len(data))
				}
			},
		},
		{
			path: "stream.MP4",
			check: func(t *testing.T, data []byte) {
				if len(data) < 8 || string(data[4:8]) != "ftyp" {
					t.Errorf("expected an ftyp box first")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			fs := mocks.NewFileSystem()
			orch := New(mocks.NewCodecProvider(&mocks.Codec{}), fs, logger.NewNoop())

			cfg := testConfig()
			cfg.OutputPath = tt.path
			if _, err := orch.Run(context.Background(), cfg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			data, ok := fs.GetFile(tt.path)
			if !ok {
				t.Fatal("output file was not created")
			}
			tt.check(t, data)
		})
	}
}

func TestOrchestrator_Run_NullOutput(t *testing.T) {
	fs := mocks.NewFileSystem()
	orch := New(mocks.NewCodecProvider(&mocks.Codec{}), fs, logger.NewNoop())

	cfg := testConfig()
	cfg.OutputPath = "-"
	cfg.MaxFrames = 10

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Encode.Frames != 10 {
		t.Errorf("expected 10 frames, got %d", result.Encode.Frames)
	}
	if ok, _ := fs.Exists("-"); ok {
		t.Error("null output must not create a file")
	}
}

func TestOrchestrator_Run_RawSource(t *testing.T) {
	geom, err := avcencoder.NewGeometry(64, 48)
	if err != nil {
		t.Fatal(err)
	}

	fs := mocks.NewFileSystem()
	fs.AddFile("in.yuv", make([]byte, 3*geom.InputSize()))
	orch := New(mocks.NewCodecProvider(&mocks.Codec{}), fs, logger.NewNoop())

	cfg := testConfig()
	cfg.Source = SourceConfig{Kind: SourceRaw, Path: "in.yuv"}

	result, err := orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Encode.Frames != 3 {
		t.Errorf("expected 3 frames, got %d", result.Encode.Frames)
	}
}

func TestOrchestrator_Run_UnknownSource(t *testing.T) {
	codec := &mocks.Codec{}
	orch := New(mocks.NewCodecProvider(codec), mocks.NewFileSystem(), logger.NewNoop())

	cfg := testConfig()
	cfg.Source.Kind = "webcam"

	_, err := orch.Run(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if codec.ReleaseCalls != 1 {
		t.Error("the encoder must be released when the source cannot be opened")
	}
}

func TestOrchestrator_Run_EncoderError(t *testing.T) {
	boom := errors.New("configure failed")
	orch := New(mocks.NewCodecProvider(&mocks.Codec{ConfigureErr: boom}), mocks.NewFileSystem(), logger.NewNoop())

	_, err := orch.Run(context.Background(), testConfig())
	if !errors.Is(err, boom) {
		t.Fatalf("expected configure error, got %v", err)
	}
}

func TestOrchestrator_Run_Canceled(t *testing.T) {
	fs := mocks.NewFileSystem()
	orch := New(mocks.NewCodecProvider(&mocks.Codec{}), fs, logger.NewNoop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.OutputPath = "partial.h264"

	_, err := orch.Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := fs.GetFile("partial.h264"); !ok {
		t.Error("the output must be created and closed even when the run is canceled")
	}
}
