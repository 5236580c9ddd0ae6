package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/avcstream/pkg/config"
	"github.com/user/avcstream/pkg/mocks"
	"github.com/user/avcstream/pkg/orchestrator"
	"github.com/user/avcstream/pkg/pipeline"
	"github.com/user/avcstream/pkg/streaminfo"
)

func sampleStream() []byte {
	idr := mocks.AnnexB([]byte{0x65, 0x88, 0x84})
	p := mocks.AnnexB([]byte{0x41, 0x9a, 0x02})
	var stream []byte
	stream = append(stream, mocks.DefaultParameterSets...)
	stream = append(stream, idr...)
	stream = append(stream, p...)
	stream = append(stream, p...)
	return stream
}

func TestProbe(t *testing.T) {
	var out bytes.Buffer
	if err := probe(&out, sampleStream()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Pictures: 3 (1 IDR)", "High", "1280x720"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestProbe_NoParameterSets(t *testing.T) {
	var out bytes.Buffer
	if err := probe(&out, mocks.AnnexB([]byte{0x41, 0x9a, 0x02})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No parameter sets found") {
		t.Errorf("expected missing parameter sets notice, got:\n%s", out.String())
	}
}

func TestEncodeCommand_InvalidFlags(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"avcstream", "encode", "--width", "641", "--output", "-"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestEncodeCommand_MissingConfig(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"avcstream", "encode", "--config", t.TempDir() + "/missing.yaml"})
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestBuildSummary(t *testing.T) {
	var stats streaminfo.Stats
	if err := stats.Add(sampleStream()); err != nil {
		t.Fatal(err)
	}
	desc, err := streaminfo.DescribeParameterSets(mocks.DefaultParameterSets)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.Source = config.SourceConfig{Kind: orchestrator.SourceRaw, Path: "in.yuv"}
	cfg.OutputPath = "out.h264"

	summary := buildSummary(cfg, orchestrator.RunResult{
		Encode: pipeline.EncodeResult{
			Frames:    3,
			Fragments: 1,
			Bytes:     int64(len(sampleStream())),
			KeyFrames: 1,
			Stats:     stats,
		},
		Codec:   "libx264",
		Stream:  &desc,
		Elapsed: time.Second,
	})

	if summary.Encoder.Name != "libx264" {
		t.Errorf("expected encoder libx264, got %q", summary.Encoder.Name)
	}
	if summary.Settings.Source != "raw: in.yuv" {
		t.Errorf("unexpected source %q", summary.Settings.Source)
	}
	if summary.Stream.Profile != "High" || summary.Stream.Level != "3.1" {
		t.Errorf("unexpected profile %s level %s", summary.Stream.Profile, summary.Stream.Level)
	}
	if len(summary.Stream.NALUs) != 4 {
		t.Errorf("expected 4 NAL unit types, got %d", len(summary.Stream.NALUs))
	}
}
