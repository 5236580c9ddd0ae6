// Package main provides the CLI entry point for avcstream.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/avcstream/pkg/adapters/ffmpegcodec"
	"github.com/user/avcstream/pkg/adapters/logger"
	"github.com/user/avcstream/pkg/adapters/osfilesystem"
	"github.com/user/avcstream/pkg/config"
	"github.com/user/avcstream/pkg/orchestrator"
	"github.com/user/avcstream/pkg/ports"
	"github.com/user/avcstream/pkg/streaminfo"
	"github.com/user/avcstream/pkg/summarizer"
)

var version = "dev"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "avcstream",
		Usage:   l10n.T("Encode raw video into an H.264 elementary stream"),
		Version: version,
		Commands: []*cli.Command{
			encodeCommand(),
			codecsCommand(),
			probeCommand(),
		},
	}
}

const (
	categoryStream  = "Stream"
	categoryEncoder = "Encoder"
	categoryIO      = "Input and Output"
	categoryLogging = "Logging"
)

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:        "encode",
		Usage:       l10n.T("Encode frames into an H.264 stream"),
		Description: l10n.T("Read frames from a source, encode them with a hardware encoder and write the Annex-B stream."),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file")},

			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: l10n.T("Frame width in pixels (even)"), Category: l10n.T(categoryStream)},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: l10n.T("Frame height in pixels (even)"), Category: l10n.T(categoryStream)},
			&cli.IntFlag{Name: "fps", Usage: l10n.T("Frame rate"), Category: l10n.T(categoryStream)},
			&cli.IntFlag{Name: "bitrate", Aliases: []string{"b"}, Usage: l10n.T("Target bitrate in bits per second"), Category: l10n.T(categoryStream)},
			&cli.IntFlag{Name: "keyframe-interval", Usage: l10n.T("Seconds between keyframes"), Category: l10n.T(categoryStream)},

			&cli.StringFlag{Name: "codec", Usage: l10n.T("Encoder name (default: first capable encoder)"), Category: l10n.T(categoryEncoder)},
			&cli.BoolFlag{Name: "hardware-only", Usage: l10n.T("Refuse software encoders"), Category: l10n.T(categoryEncoder)},
			&cli.StringFlag{Name: "ffmpeg", Usage: l10n.T("Path to ffmpeg executable"), EnvVars: []string{"FFMPEG_PATH"}, Category: l10n.T(categoryEncoder)},

			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: l10n.T("Frame source (pattern, raw, images)"), Category: l10n.T(categoryIO)},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: l10n.T("Raw YV12 file or image directory"), Category: l10n.T(categoryIO)},
			&cli.IntFlag{Name: "frames", Usage: l10n.T("Number of frames to read from the source"), Category: l10n.T(categoryIO)},
			&cli.IntFlag{Name: "hold", Usage: l10n.T("Frames each still image is shown for"), Category: l10n.T(categoryIO)},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Output file (.h264, .ts or .mp4; - discards)"), Category: l10n.T(categoryIO)},
			&cli.IntFlag{Name: "max-frames", Usage: l10n.T("Stop after this many frames"), Category: l10n.T(categoryIO)},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Output execution summary to file (Markdown format)"), Category: l10n.T(categoryIO)},

			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T(categoryLogging)},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T(categoryLogging)},
		},
		Action: runEncode,
	}
}

func codecsCommand() *cli.Command {
	return &cli.Command{
		Name:  "codecs",
		Usage: l10n.T("List the H.264 encoders ffmpeg offers"),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ffmpeg", Usage: l10n.T("Path to ffmpeg executable"), EnvVars: []string{"FFMPEG_PATH"}},
		},
		Action: runCodecs,
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Describe an H.264 stream (Annex-B or MP4)"),
		ArgsUsage: "FILE",
		Action:    runProbe,
	}
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	ints := map[string]*int{
		"width":             &cfg.Width,
		"height":            &cfg.Height,
		"fps":               &cfg.FPS,
		"bitrate":           &cfg.Bitrate,
		"keyframe-interval": &cfg.KeyFrameInterval,
		"frames":            &cfg.Source.Frames,
		"hold":              &cfg.Source.Hold,
		"max-frames":        &cfg.MaxFrames,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	strs := map[string]*string{
		"codec":   &cfg.Codec,
		"ffmpeg":  &cfg.FFmpegPath,
		"source":  &cfg.Source.Kind,
		"input":   &cfg.Source.Path,
		"output":  &cfg.OutputPath,
		"summary": &cfg.Summary,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}

	if c.IsSet("hardware-only") {
		cfg.HardwareOnly = c.Bool("hardware-only")
	}
	if c.IsSet("log-level") {
		level, err := ports.ParseLogLevel(c.String("log-level"))
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = level
	}
	if c.Bool("quiet") {
		cfg.LogLevel = ports.LevelQuiet
	}

	return cfg, cfg.Validate()
}

func newLogger(level ports.LogLevel) ports.Logger {
	if level == ports.LevelQuiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(level)
}

// signalContext cancels the returned context on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func runEncode(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	if cfg.FFmpegPath != "" {
		ffmpegcodec.SetFFmpegPath(cfg.FFmpegPath)
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	fs := osfilesystem.New()
	orch := orchestrator.New(ffmpegcodec.NewProvider(log), fs, log)

	result, runErr := orch.Run(ctx, cfg.ToOrchestratorConfig())

	if cfg.Summary != "" {
		writer := summarizer.NewWriter(summarizer.NewMarkdownFormatter(
			summarizer.WithTranslator(func(s string) string { return l10n.T(s) }),
			summarizer.WithVersion(version),
		), fs)
		if err := writer.Write(cfg.Summary, buildSummary(cfg, result)); err != nil {
			log.Warn("Failed to write summary: %s", err)
		} else {
			log.Info("Summary saved to %s", cfg.Summary)
		}
	}

	if runErr != nil {
		return runErr
	}
	if cfg.OutputPath != "" && cfg.OutputPath != "-" {
		log.Info("Output saved to %s", cfg.OutputPath)
	}
	return nil
}

// buildSummary converts a run result into a summary.
func buildSummary(cfg config.Config, result orchestrator.RunResult) *summarizer.Summary {
	stats := result.Encode.Stats
	stream := summarizer.StreamInfo{
		Frames:        result.Encode.Frames,
		Fragments:     result.Encode.Fragments,
		Bytes:         result.Encode.Bytes,
		KeyFrames:     result.Encode.KeyFrames,
		SkippedCycles: result.Encode.SkippedCycles,
	}
	if desc := result.Stream; desc != nil {
		stream.Profile = desc.Profile()
		stream.Level = desc.Level()
		stream.CodedWidth = desc.Width
		stream.CodedHeight = desc.Height
	}
	nalTypes := make([]h264.NALUType, 0, len(stats.NALUs))
	for typ := range stats.NALUs {
		nalTypes = append(nalTypes, typ)
	}
	slices.Sort(nalTypes)
	for _, typ := range nalTypes {
		stream.NALUs = append(stream.NALUs, summarizer.NALUCount{Type: typ.String(), Count: stats.NALUs[typ]})
	}

	source := cfg.Source.Kind
	if cfg.Source.Path != "" {
		source += ": " + cfg.Source.Path
	}

	return summarizer.NewBuilder().
		WithEncoder(result.Codec, result.Elapsed).
		WithSettings(summarizer.Settings{
			Width:            cfg.Width,
			Height:           cfg.Height,
			FPS:              cfg.FPS,
			Bitrate:          cfg.Bitrate,
			KeyFrameInterval: cfg.KeyFrameInterval,
			Source:           source,
			Output:           cfg.OutputPath,
		}).
		WithStream(stream).
		Build()
}

func runCodecs(c *cli.Context) error {
	if path := c.String("ffmpeg"); path != "" {
		ffmpegcodec.SetFFmpegPath(path)
	}

	codecs, err := ffmpegcodec.NewProvider(nil).Codecs()
	if err != nil {
		return err
	}
	if len(codecs) == 0 {
		fmt.Fprintln(c.App.Writer, l10n.T("No H.264 encoders found"))
		return nil
	}

	for _, info := range codecs {
		kind := l10n.T("software")
		if info.Hardware {
			kind = l10n.T("hardware")
		}
		var formats []string
		if caps, ok := info.CapabilitiesFor(ports.MimeTypeAVC); ok {
			for _, f := range caps.ColorFormats {
				formats = append(formats, f.String())
			}
		}
		fmt.Fprintf(c.App.Writer, "%-20s %-9s %v\n", info.Name, kind, formats)
	}
	return nil
}

func runProbe(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("Exactly one file argument is required"), 2)
	}

	path := c.Args().First()
	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		pictures, err := streaminfo.ReadMP4(f)
		if err != nil {
			return err
		}
		return probe(c.App.Writer, bytes.Join(pictures, nil))
	}

	data, err := osfilesystem.New().ReadFile(path)
	if err != nil {
		return err
	}
	return probe(c.App.Writer, data)
}

// probe prints picture, NAL unit and parameter set information for an
// Annex-B stream.
func probe(w io.Writer, data []byte) error {
	pictures, err := streaminfo.SplitPictures(data)
	if err != nil {
		return fmt.Errorf("parse stream: %w", err)
	}

	var (
		stats streaminfo.Stats
		idr   int
	)
	if err := stats.Add(data); err != nil {
		return fmt.Errorf("parse stream: %w", err)
	}
	for _, p := range pictures {
		if p.IDR {
			idr++
		}
	}

	fmt.Fprintln(w, l10n.F("Pictures: %d (%d IDR)", len(pictures), idr))
	fmt.Fprintln(w, stats.String())

	desc, err := streaminfo.DescribeParameterSets(streaminfo.FindParameterSets(data))
	if err != nil {
		fmt.Fprintln(w, l10n.T("No parameter sets found"))
		return nil
	}
	fmt.Fprintln(w, l10n.F("Parameter sets: %s profile, level %s, %dx%d", desc.Profile(), desc.Level(), desc.Width, desc.Height))
	return nil
}
