package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(translate func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = translate
	}
}

// WithVersion sets the version shown in the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Formatter = (*MarkdownFormatter)(nil)

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Encoding Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", t("Generated"), s.GeneratedAt.Format("2006-01-02 15:04:05"))

	// Results
	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	f.tableHeader(&b)
	f.row(&b, "Encoder", valueOr(s.Encoder.Name, t("None")))
	f.row(&b, "Frames", fmt.Sprintf("%d", s.Stream.Frames))
	f.row(&b, "Fragments", fmt.Sprintf("%d", s.Stream.Fragments))
	f.row(&b, "Keyframes", fmt.Sprintf("%d", s.Stream.KeyFrames))
	if s.Stream.SkippedCycles > 0 {
		f.row(&b, "Skipped Cycles", fmt.Sprintf("%d", s.Stream.SkippedCycles))
	}
	f.row(&b, "Stream Size", formatBytes(s.Stream.Bytes))
	if bps := s.AverageBitrate(); bps > 0 {
		f.row(&b, "Average Bitrate", formatBitrate(bps))
	}
	if s.Encoder.Elapsed > 0 {
		f.row(&b, "Encode Time", fmt.Sprintf("%d ms", s.Encoder.Elapsed.Milliseconds()))
	}
	if speed := s.Speed(); speed > 0 {
		f.row(&b, "Speed", fmt.Sprintf("%.2fx", speed))
	}
	b.WriteString("\n")

	// Settings
	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	f.tableHeader(&b)
	f.row(&b, "Resolution", fmt.Sprintf("%dx%d", s.Settings.Width, s.Settings.Height))
	f.row(&b, "Frame Rate", fmt.Sprintf("%d fps", s.Settings.FPS))
	f.row(&b, "Target Bitrate", formatBitrate(float64(s.Settings.Bitrate)))
	f.row(&b, "Keyframe Interval", fmt.Sprintf("%d s", s.Settings.KeyFrameInterval))
	f.row(&b, "Source", valueOr(s.Settings.Source, t("None")))
	f.row(&b, "Output", valueOr(s.Settings.Output, t("None")))
	b.WriteString("\n")

	// Parameter sets
	fmt.Fprintf(&b, "## %s\n\n", t("Parameter Sets"))
	if s.Stream.Profile == "" {
		fmt.Fprintf(&b, "%s\n\n", t("None"))
	} else {
		f.tableHeader(&b)
		f.row(&b, "Profile", s.Stream.Profile)
		f.row(&b, "Level", s.Stream.Level)
		f.row(&b, "Coded Size", fmt.Sprintf("%dx%d", s.Stream.CodedWidth, s.Stream.CodedHeight))
		b.WriteString("\n")
	}

	// NAL units
	if len(s.Stream.NALUs) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("NAL Units"))
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Type"), t("Count"))
		for _, n := range s.Stream.NALUs {
			fmt.Fprintf(&b, "| %s | %d |\n", n.Type, n.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	if f.version != "" {
		fmt.Fprintf(&b, "%s avcstream %s\n", t("Generated by"), f.version)
	} else {
		fmt.Fprintf(&b, "%s avcstream\n", t("Generated by"))
	}

	return b.String()
}

func (f *MarkdownFormatter) tableHeader(b *strings.Builder) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", f.translate("Item"), f.translate("Value"))
}

func (f *MarkdownFormatter) row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", f.translate(label), value)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}

// formatBitrate formats bits per second with decimal units.
func formatBitrate(bps float64) string {
	switch {
	case bps >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", bps/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%.1f kbps", bps/1_000)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}
