package mocks

import (
	"errors"
	"fmt"
	"time"

	"github.com/user/avcstream/pkg/ports"
)

// MockEncoderName is the codec name reported by NewCodecProvider.
const MockEncoderName = "mock.avc.encoder"

// DefaultSPS is a High profile, level 3.1, 1280x720 sequence parameter set.
var DefaultSPS = []byte{
	0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50, 0x05, 0xbb, 0xff, 0x00,
	0x03, 0x00, 0x04, 0x6a, 0x02, 0x02, 0x02, 0x80, 0x00, 0x01, 0xf4, 0x80,
	0x00, 0x5d, 0xc0, 0x07, 0x8c, 0x18, 0xcb,
}

// DefaultPPS is the picture parameter set paired with DefaultSPS.
var DefaultPPS = []byte{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}

// DefaultParameterSets is the config unit a Codec emits ahead of its first
// frame: DefaultSPS and DefaultPPS, each behind a 4-byte start code.
var DefaultParameterSets = AnnexB(DefaultSPS, DefaultPPS)

// AnnexB joins NAL units with 4-byte start codes.
func AnnexB(nalus ...[]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, nalu...)
	}
	return out
}

// Codec is a scripted, single-threaded ports.Codec. Every queued frame
// produces one access unit: an IDR slice (0x65) every GOPSize frames and a
// non-IDR slice (0x41) otherwise. Slice payloads never contain zero bytes.
// Units become ready Lag frames later.
type Codec struct {
	// ConfigUnit overrides DefaultParameterSets as the first output.
	ConfigUnit []byte
	// GOPSize overrides FrameRate*KeyFrameInterval from the configured format.
	GOPSize int
	// Lag is the number of frames output trails input.
	Lag int
	// InputSlots is the number of input buffers (default 2).
	InputSlots int

	ConfigureErr     error
	StartErr         error
	StopErr          error
	ReleaseErr       error
	QueueInputErr    error
	DequeueOutputErr error

	// Recorded state for verification.
	Format       ports.CodecFormat
	Configured   bool
	Started      bool
	StopCalls    int
	ReleaseCalls int
	QueuedPTS    []int64
	QueuedSizes  []int
	QueuedFlags  []ports.BufferFlags
	// LastInput holds a copy of the most recently queued frame.
	LastInput []byte

	inputs     [][]byte
	freeInputs []int
	delayed    []outputUnit
	ready      []outputUnit
	outBufs    map[int]outputUnit
	nextOut    int
	frames     int
	configSent bool
}

type outputUnit struct {
	data  []byte
	pts   int64
	flags ports.BufferFlags
}

func (m *Codec) Configure(format ports.CodecFormat) error {
	if m.ConfigureErr != nil {
		return m.ConfigureErr
	}
	m.Format = format
	m.Configured = true

	slots := m.InputSlots
	if slots <= 0 {
		slots = 2
	}
	size := format.Width*format.Height*3/2 + 4096
	m.inputs = make([][]byte, slots)
	m.freeInputs = m.freeInputs[:0]
	for i := range m.inputs {
		m.inputs[i] = make([]byte, size)
		m.freeInputs = append(m.freeInputs, i)
	}
	m.outBufs = make(map[int]outputUnit)
	return nil
}

func (m *Codec) Start() error {
	if !m.Configured {
		return errors.New("mock codec: start before configure")
	}
	if m.StartErr != nil {
		return m.StartErr
	}
	m.Started = true
	return nil
}

func (m *Codec) Stop() error {
	m.StopCalls++
	m.Started = false
	return m.StopErr
}

func (m *Codec) Release() error {
	m.ReleaseCalls++
	return m.ReleaseErr
}

func (m *Codec) DequeueInputBuffer(timeout time.Duration) (int, error) {
	if !m.Started {
		return 0, errors.New("mock codec: not started")
	}
	if len(m.freeInputs) == 0 {
		return 0, ports.ErrTryAgainLater
	}
	index := m.freeInputs[0]
	m.freeInputs = m.freeInputs[1:]
	return index, nil
}

func (m *Codec) InputBuffer(index int) ([]byte, error) {
	if index < 0 || index >= len(m.inputs) {
		return nil, fmt.Errorf("mock codec: bad input index %d", index)
	}
	return m.inputs[index], nil
}

func (m *Codec) QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags ports.BufferFlags) error {
	if m.QueueInputErr != nil {
		return m.QueueInputErr
	}
	if index < 0 || index >= len(m.inputs) {
		return fmt.Errorf("mock codec: bad input index %d", index)
	}

	m.QueuedPTS = append(m.QueuedPTS, presentationTimeUs)
	m.QueuedSizes = append(m.QueuedSizes, size)
	m.QueuedFlags = append(m.QueuedFlags, flags)
	m.LastInput = append(m.LastInput[:0], m.inputs[index][offset:offset+size]...)
	m.freeInputs = append(m.freeInputs, index)

	if flags.Has(ports.BufferFlagEndOfStream) {
		m.ready = append(m.ready, m.delayed...)
		m.delayed = nil
		m.ready = append(m.ready, outputUnit{pts: presentationTimeUs, flags: ports.BufferFlagEndOfStream})
		return nil
	}

	if !m.configSent {
		config := m.ConfigUnit
		if config == nil {
			config = DefaultParameterSets
		}
		m.ready = append(m.ready, outputUnit{data: config, flags: ports.BufferFlagCodecConfig})
		m.configSent = true
	}

	m.delayed = append(m.delayed, m.frameUnit(presentationTimeUs))
	m.frames++
	for len(m.delayed) > m.Lag {
		m.ready = append(m.ready, m.delayed[0])
		m.delayed = m.delayed[1:]
	}
	return nil
}

func (m *Codec) frameUnit(pts int64) outputUnit {
	gop := m.GOPSize
	if gop <= 0 {
		gop = m.Format.FrameRate * m.Format.KeyFrameInterval
	}
	if gop <= 0 {
		gop = 1
	}

	header, flags := byte(0x41), ports.BufferFlags(0)
	if m.frames%gop == 0 {
		header, flags = 0x65, ports.BufferFlagKeyFrame
	}
	n := m.frames
	return outputUnit{
		data:  []byte{0x00, 0x00, 0x00, 0x01, header, 0x88, 0x80 | byte(n>>7), 0x80 | byte(n&0x7F)},
		pts:   pts,
		flags: flags,
	}
}

func (m *Codec) DequeueOutputBuffer(timeout time.Duration) (int, ports.BufferInfo, error) {
	if m.DequeueOutputErr != nil {
		return 0, ports.BufferInfo{}, m.DequeueOutputErr
	}
	if len(m.ready) == 0 {
		return 0, ports.BufferInfo{}, ports.ErrTryAgainLater
	}

	unit := m.ready[0]
	m.ready = m.ready[1:]
	index := m.nextOut
	m.nextOut++
	m.outBufs[index] = unit

	return index, ports.BufferInfo{
		Size:               len(unit.data),
		PresentationTimeUs: unit.pts,
		Flags:              unit.flags,
	}, nil
}

func (m *Codec) OutputBuffer(index int) ([]byte, error) {
	unit, ok := m.outBufs[index]
	if !ok {
		return nil, fmt.Errorf("mock codec: output index %d not dequeued", index)
	}
	return unit.data, nil
}

func (m *Codec) ReleaseOutputBuffer(index int) error {
	if _, ok := m.outBufs[index]; !ok {
		return fmt.Errorf("mock codec: output index %d not dequeued", index)
	}
	delete(m.outBufs, index)
	return nil
}

// OutstandingOutputs returns the number of dequeued but unreleased output buffers.
func (m *Codec) OutstandingOutputs() int {
	return len(m.outBufs)
}

// FramesQueued returns the number of frames (excluding end of stream) queued.
func (m *Codec) FramesQueued() int {
	return m.frames
}

var _ ports.Codec = (*Codec)(nil)

// CodecProvider is a mock ports.CodecProvider that hands out one Codec.
type CodecProvider struct {
	Infos     []ports.CodecInfo
	Codec     *Codec
	CodecsErr error
	CreateErr error

	CreatedNames []string
}

// NewCodecProvider returns a provider advertising a single flexible-format AVC encoder.
func NewCodecProvider(codec *Codec) *CodecProvider {
	return &CodecProvider{
		Infos: []ports.CodecInfo{{
			Name:     MockEncoderName,
			Encoder:  true,
			Hardware: true,
			Capabilities: []ports.CodecCapabilities{{
				MimeType:     ports.MimeTypeAVC,
				ColorFormats: []ports.ColorFormat{ports.ColorFormatYUV420SemiPlanar, ports.ColorFormatYUV420Flexible},
			}},
		}},
		Codec: codec,
	}
}

func (p *CodecProvider) Codecs() ([]ports.CodecInfo, error) {
	if p.CodecsErr != nil {
		return nil, p.CodecsErr
	}
	return p.Infos, nil
}

func (p *CodecProvider) CreateEncoderByType(mimeType string) (ports.Codec, error) {
	for _, info := range p.Infos {
		if _, ok := info.CapabilitiesFor(mimeType); ok && info.Encoder {
			return p.CreateEncoderByName(info.Name)
		}
	}
	return nil, fmt.Errorf("mock provider: no encoder for %s", mimeType)
}

func (p *CodecProvider) CreateEncoderByName(name string) (ports.Codec, error) {
	p.CreatedNames = append(p.CreatedNames, name)
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	return p.Codec, nil
}

var _ ports.CodecProvider = (*CodecProvider)(nil)
