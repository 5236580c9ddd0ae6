package avcstream

import (
	"context"
	"testing"
	"time"

	"github.com/user/avcstream/pkg/mocks"
	"github.com/user/avcstream/pkg/orchestrator"
)

func TestConfigBuilder_Defaults(t *testing.T) {
	cfg := NewConfigBuilder().Build()

	if cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS != 30 {
		t.Errorf("expected 30 fps, got %d", cfg.FPS)
	}
	want := EstimateBitrate(1280, 720, 30, QualityMedium)
	if cfg.Bitrate != want {
		t.Errorf("expected bitrate %d, got %d", want, cfg.Bitrate)
	}
	if cfg.Source.Kind != orchestrator.SourcePattern {
		t.Errorf("expected pattern source, got %q", cfg.Source.Kind)
	}
}

func TestConfigBuilder_SD(t *testing.T) {
	cfg := NewSDConfigBuilder().Build()
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestConfigBuilder_Constraints(t *testing.T) {
	cfg := NewConfigBuilder().
		WithSize(641, 1).
		WithFPS(0).
		WithKeyFrameInterval(0).
		Build()

	if cfg.Width != 640 {
		t.Errorf("expected width rounded to 640, got %d", cfg.Width)
	}
	if cfg.Height != 2 {
		t.Errorf("expected minimum height 2, got %d", cfg.Height)
	}
	if cfg.FPS != 1 {
		t.Errorf("expected minimum fps 1, got %d", cfg.FPS)
	}
	if cfg.KeyFrameInterval != 1 {
		t.Errorf("expected minimum interval 1, got %d", cfg.KeyFrameInterval)
	}
}

func TestConfigBuilder_Bitrate(t *testing.T) {
	explicit := NewConfigBuilder().WithBitrate(750_000).WithQualityPreset(QualityHigh).Build()
	if explicit.Bitrate != 750_000 {
		t.Errorf("explicit bitrate must win, got %d", explicit.Bitrate)
	}

	low := NewConfigBuilder().WithQualityPreset(QualityLow).Build()
	high := NewConfigBuilder().WithQualityPreset(QualityHigh).Build()
	if low.Bitrate >= high.Bitrate {
		t.Errorf("low preset (%d) should be below high preset (%d)", low.Bitrate, high.Bitrate)
	}
}

func TestConfig_ToOrchestratorConfig(t *testing.T) {
	cfg := NewConfigBuilder().
		WithSize(320, 240).
		WithCodec("h264_qsv").
		WithHardwareOnly(true).
		WithRawSource("in.yuv", 10).
		WithOutput("out.ts").
		WithMaxFrames(5).
		Build()

	oc := cfg.ToOrchestratorConfig()

	if oc.Session.Width != 320 || oc.Session.Height != 240 {
		t.Errorf("unexpected size %dx%d", oc.Session.Width, oc.Session.Height)
	}
	if oc.Session.CodecName != "h264_qsv" || !oc.Session.HardwareOnly {
		t.Errorf("unexpected encoder selection %q", oc.Session.CodecName)
	}
	if oc.Source.Kind != orchestrator.SourceRaw || oc.Source.Frames != 10 {
		t.Errorf("unexpected source %+v", oc.Source)
	}
	if oc.OutputPath != "out.ts" || oc.MaxFrames != 5 {
		t.Errorf("unexpected output %q max %d", oc.OutputPath, oc.MaxFrames)
	}
	if oc.Session.DrainTimeout <= 0 || oc.Session.FinishTimeout <= 0 {
		t.Error("timeouts must keep their defaults")
	}
}

func TestEncodeWith(t *testing.T) {
	cfg := NewConfigBuilder().
		WithSize(64, 48).
		WithPatternSource(12).
		WithOutput("pattern.h264").
		Build()
	cfg.DrainTimeout = time.Millisecond

	fs := mocks.NewFileSystem()
	result, err := EncodeWith(context.Background(), cfg, mocks.NewCodecProvider(&mocks.Codec{}), fs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Encode.Frames != 12 {
		t.Errorf("expected 12 frames, got %d", result.Encode.Frames)
	}
	if _, ok := fs.GetFile("pattern.h264"); !ok {
		t.Error("expected the output file to be written")
	}
}
