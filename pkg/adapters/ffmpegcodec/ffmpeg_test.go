package ffmpegcodec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ------
 V....D a64multi             Multicolor charset for Commodore 64 (codec a64_multi)
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D libx264rgb           libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 RGB (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V..... h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 V....D libx265              libx265 H.265 / HEVC (codec hevc)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseEncoders(t *testing.T) {
	infos := ParseEncoders([]byte(sampleEncoders))

	want := []struct {
		name     string
		hardware bool
	}{
		{"h264_nvenc", true},
		{"h264_vaapi", true},
		{"libx264", false},
	}

	if len(infos) != len(want) {
		t.Fatalf("expected %d encoders, got %d: %+v", len(want), len(infos), infos)
	}
	for i, w := range want {
		if infos[i].Name != w.name || infos[i].Hardware != w.hardware {
			t.Errorf("encoder %d: got %s (hardware %v), want %s (hardware %v)",
				i, infos[i].Name, infos[i].Hardware, w.name, w.hardware)
		}
		if !infos[i].Encoder {
			t.Errorf("%s must be reported as an encoder", infos[i].Name)
		}
		if len(infos[i].Capabilities) != 1 || len(infos[i].Capabilities[0].ColorFormats) != 2 {
			t.Errorf("%s: unexpected capabilities %+v", infos[i].Name, infos[i].Capabilities)
		}
	}
}

func TestParseEncoders_IgnoresLegend(t *testing.T) {
	// The legend lines look like encoder rows but precede the separator.
	infos := ParseEncoders([]byte(" V..... libx264 legend\n"))
	if len(infos) != 0 {
		t.Errorf("expected nothing before the separator, got %+v", infos)
	}
}

func TestFindFFmpeg_CustomPath(t *testing.T) {
	t.Cleanup(func() { SetFFmpegPath("") })

	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to write fake ffmpeg: %v", err)
	}

	SetFFmpegPath(path)
	got, err := FindFFmpeg()
	if err != nil {
		t.Fatalf("FindFFmpeg failed: %v", err)
	}
	if got != path {
		t.Errorf("expected %s, got %s", path, got)
	}

	SetFFmpegPath(filepath.Join(t.TempDir(), "missing"))
	if _, err := FindFFmpeg(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound, got %v", err)
	}
}

func TestFindFFmpeg_EnvPath(t *testing.T) {
	t.Setenv("FFMPEG_PATH", filepath.Join(t.TempDir(), "missing"))

	if _, err := FindFFmpeg(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound for a missing FFMPEG_PATH, got %v", err)
	}
}

func TestProvider_UnknownEncoder(t *testing.T) {
	p := NewProvider(nil)

	if _, err := p.CreateEncoderByName("mpeg4"); !errors.Is(err, ErrUnknownEncoder) {
		t.Errorf("expected ErrUnknownEncoder, got %v", err)
	}
}
