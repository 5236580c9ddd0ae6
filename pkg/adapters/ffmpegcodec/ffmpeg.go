// Package ffmpegcodec drives H.264 encoders through an ffmpeg child process
// behind the buffer-handshake codec interface. Frames go to ffmpeg's stdin as
// raw NV12 and the Annex-B stream on stdout is cut into access units.
package ffmpegcodec

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/user/avcstream/pkg/adapters/logger"
	"github.com/user/avcstream/pkg/ports"
)

// customFFmpegPath is set via SetFFmpegPath.
var customFFmpegPath string

// SetFFmpegPath pins the ffmpeg executable. An empty path restores discovery.
func SetFFmpegPath(path string) {
	customFFmpegPath = path
}

// IsFFmpegAvailable checks if ffmpeg is available on the system.
func IsFFmpegAvailable() bool {
	_, err := FindFFmpeg()
	return err == nil
}

// FindFFmpeg searches for ffmpeg in PATH and common locations.
// Priority: 1) customFFmpegPath (set via SetFFmpegPath), 2) FFMPEG_PATH env, 3) PATH, 4) common locations
func FindFFmpeg() (string, error) {
	if customFFmpegPath != "" {
		if _, err := os.Stat(customFFmpegPath); err == nil {
			return customFFmpegPath, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, customFFmpegPath)
	}

	if envPath := os.Getenv("FFMPEG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: FFMPEG_PATH %s not found", ErrFFmpegNotFound, envPath)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	for _, p := range commonPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrFFmpegNotFound
}

func commonPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files (x86)\ffmpeg\bin\ffmpeg.exe`,
		}
	case "darwin":
		return []string{
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/usr/bin/ffmpeg",
		}
	default:
		return []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}
}

// encoderProfile describes how to drive one of ffmpeg's H.264 encoders.
type encoderProfile struct {
	hardware bool
	// args are inserted before the output options.
	args []string
}

// knownEncoders lists the H.264 encoders this package can drive, in the
// order they are reported. Hardware encoders come first.
var knownEncoders = []struct {
	name    string
	profile encoderProfile
}{
	{"h264_videotoolbox", encoderProfile{hardware: true, args: []string{"-realtime", "1"}}},
	{"h264_nvenc", encoderProfile{hardware: true, args: []string{"-preset", "p1", "-tune", "ll"}}},
	{"h264_qsv", encoderProfile{hardware: true, args: []string{"-preset", "veryfast"}}},
	{"h264_amf", encoderProfile{hardware: true, args: []string{"-usage", "lowlatency"}}},
	{"h264_vaapi", encoderProfile{hardware: true, args: []string{"-vaapi_device", "/dev/dri/renderD128", "-vf", "format=nv12,hwupload"}}},
	{"h264_v4l2m2m", encoderProfile{hardware: true}},
	{"libx264", encoderProfile{args: []string{"-preset", "veryfast", "-tune", "zerolatency"}}},
}

func lookupEncoder(name string) (encoderProfile, bool) {
	for _, e := range knownEncoders {
		if e.name == name {
			return e.profile, true
		}
	}
	return encoderProfile{}, false
}

// ParseEncoders extracts the known H.264 encoders from the output of
// `ffmpeg -encoders`. Encoders are reported in knownEncoders order.
func ParseEncoders(output []byte) []ports.CodecInfo {
	available := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			// The encoder table follows a dashed separator line.
			listing = strings.HasPrefix(line, "---")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		available[fields[1]] = true
	}

	var infos []ports.CodecInfo
	for _, e := range knownEncoders {
		if !available[e.name] {
			continue
		}
		infos = append(infos, ports.CodecInfo{
			Name:     e.name,
			Encoder:  true,
			Hardware: e.profile.hardware,
			Capabilities: []ports.CodecCapabilities{{
				MimeType:     ports.MimeTypeAVC,
				ColorFormats: []ports.ColorFormat{ports.ColorFormatYUV420SemiPlanar, ports.ColorFormatYUV420Flexible},
			}},
		})
	}
	return infos
}

// Provider enumerates and creates ffmpeg-backed encoders.
type Provider struct {
	log ports.Logger

	path   string
	codecs []ports.CodecInfo
}

// NewProvider creates a Provider. A nil logger discards all output.
func NewProvider(log ports.Logger) *Provider {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Provider{log: log.WithComponent("ffmpeg")}
}

// Codecs lists the known H.264 encoders the local ffmpeg build offers.
// The listing is cached after the first successful call.
func (p *Provider) Codecs() ([]ports.CodecInfo, error) {
	if p.codecs != nil {
		return p.codecs, nil
	}

	path, err := p.ffmpegPath()
	if err != nil {
		return nil, err
	}

	out, err := exec.Command(path, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}

	p.codecs = ParseEncoders(out)
	p.log.Debug("ffmpeg offers %d H.264 encoders", len(p.codecs))
	return p.codecs, nil
}

// CreateEncoderByType creates the first encoder offered for mimeType.
func (p *Provider) CreateEncoderByType(mimeType string) (ports.Codec, error) {
	codecs, err := p.Codecs()
	if err != nil {
		return nil, err
	}
	for _, info := range codecs {
		if _, ok := info.CapabilitiesFor(mimeType); ok {
			return p.CreateEncoderByName(info.Name)
		}
	}
	return nil, fmt.Errorf("%w: no encoder for %s", ErrUnknownEncoder, mimeType)
}

// CreateEncoderByName creates the named encoder. The process starts on Codec.Start.
func (p *Provider) CreateEncoderByName(name string) (ports.Codec, error) {
	profile, ok := lookupEncoder(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoder, name)
	}

	path, err := p.ffmpegPath()
	if err != nil {
		return nil, err
	}

	return newCodec(path, name, profile, p.log), nil
}

func (p *Provider) ffmpegPath() (string, error) {
	if p.path != "" {
		return p.path, nil
	}
	path, err := FindFFmpeg()
	if err != nil {
		return "", err
	}
	p.path = path
	return path, nil
}

var _ ports.CodecProvider = (*Provider)(nil)
