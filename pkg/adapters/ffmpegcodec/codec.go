package ffmpegcodec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/avcstream/pkg/ports"
)

// inputSlots is the number of input buffers a Codec hands out.
const inputSlots = 4

// readChunk is the stdout read size.
const readChunk = 64 * 1024

type codecState int

const (
	stateUninitialized codecState = iota
	stateConfigured
	stateRunning
	stateStopped
	stateReleased
)

type inputItem struct {
	index  int
	offset int
	size   int
	pts    int64
	eos    bool
}

// Codec is a ports.Codec backed by one ffmpeg process. Buffer methods are
// meant to be called from a single goroutine; output is collected in the
// background.
type Codec struct {
	ffmpegPath string
	name       string
	profile    encoderProfile
	log        ports.Logger

	format ports.CodecFormat
	state  codecState

	slots     [][]byte
	free      chan int
	queued    chan inputItem
	eosQueued bool

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr bytes.Buffer
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	ready    []outputUnit
	held     map[int][]byte
	nextOut  int
	ptsQueue []int64
	exited   bool
	exitErr  error
	eosSent  bool
	stopping bool
	notify   chan struct{}
}

func newCodec(ffmpegPath, name string, profile encoderProfile, log ports.Logger) *Codec {
	return &Codec{
		ffmpegPath: ffmpegPath,
		name:       name,
		profile:    profile,
		log:        log,
	}
}

// Name returns the ffmpeg encoder name.
func (c *Codec) Name() string {
	return c.name
}

func (c *Codec) Configure(format ports.CodecFormat) error {
	if c.state != stateUninitialized && c.state != stateStopped {
		return fmt.Errorf("%w: configure while %s", ErrInvalidState, c.stateName())
	}
	switch {
	case format.MimeType != ports.MimeTypeAVC:
		return fmt.Errorf("ffmpegcodec: unsupported media type %q", format.MimeType)
	case format.Width <= 0 || format.Height <= 0 || format.Width%2 != 0 || format.Height%2 != 0:
		return fmt.Errorf("ffmpegcodec: invalid size %dx%d", format.Width, format.Height)
	case format.FrameRate <= 0 || format.BitRate <= 0:
		return fmt.Errorf("ffmpegcodec: frame rate and bitrate must be positive")
	}

	c.format = format

	// Large enough for luma rows padded to 16 bytes.
	size := (format.Width + 15) / 16 * 16 * format.Height * 3 / 2
	c.slots = make([][]byte, inputSlots)
	for i := range c.slots {
		c.slots[i] = make([]byte, size)
	}

	c.state = stateConfigured
	return nil
}

// args builds the ffmpeg command line for the configured format.
func (c *Codec) args() []string {
	f := c.format
	interval := max(f.KeyFrameInterval, 1)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "nv12",
		"-s", fmt.Sprintf("%dx%d", f.Width, f.Height),
		"-r", strconv.Itoa(f.FrameRate),
		"-i", "pipe:0",
		"-c:v", c.name,
	}
	args = append(args, c.profile.args...)
	args = append(args,
		"-b:v", strconv.Itoa(f.BitRate),
		"-g", strconv.Itoa(f.FrameRate*interval),
		"-bf", "0",
		"-bsf:v", "h264_metadata=aud=insert",
		"-f", "h264",
		"pipe:1",
	)
	return args
}

func (c *Codec) Start() error {
	if c.state != stateConfigured {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, c.stateName())
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := c.args()
	c.cmd = exec.CommandContext(ctx, c.ffmpegPath, args...)
	c.stderr.Reset()
	c.cmd.Stderr = &c.stderr

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	c.log.Debug("Starting %s: %s", c.name, strings.Join(args, " "))
	if err := c.cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	c.stdin = stdin
	c.stdout = stdout
	c.cancel = cancel
	c.done = make(chan struct{})
	c.notify = make(chan struct{}, 1)
	c.free = make(chan int, len(c.slots))
	for i := range c.slots {
		c.free <- i
	}
	c.queued = make(chan inputItem, len(c.slots))
	c.eosQueued = false

	c.mu.Lock()
	c.ready = nil
	c.held = make(map[int][]byte)
	c.ptsQueue = nil
	c.exited = false
	c.exitErr = nil
	c.eosSent = false
	c.stopping = false
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writeLoop(gctx) })
	g.Go(c.readLoop)
	go c.wait(g)

	c.state = stateRunning
	return nil
}

// wait reaps the process once both pipes are done.
func (c *Codec) wait(g *errgroup.Group) {
	err := g.Wait()
	if err != nil {
		c.cancel()
	}
	waitErr := c.cmd.Wait()

	c.mu.Lock()
	if !c.stopping {
		if joined := errors.Join(err, waitErr); joined != nil {
			c.exitErr = fmt.Errorf("%w: %w: %s", ErrProcessExited, joined, strings.TrimSpace(c.stderr.String()))
			c.log.Warn("ffmpeg exited: %v", joined)
		}
	}
	c.exited = true
	c.mu.Unlock()

	c.signal()
	close(c.done)
}

func (c *Codec) writeLoop(ctx context.Context) error {
	defer c.stdin.Close()

	var scratch []byte
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-c.queued:
			if item.eos {
				c.free <- item.index
				return nil
			}

			frame, err := packNV12(&scratch, c.slots[item.index][item.offset:item.offset+item.size], c.format.Width, c.format.Height)
			if err != nil {
				c.free <- item.index
				return err
			}

			c.mu.Lock()
			c.ptsQueue = append(c.ptsQueue, item.pts)
			c.mu.Unlock()

			_, err = c.stdin.Write(frame)
			c.free <- item.index
			if err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
	}
}

func (c *Codec) readLoop() error {
	var (
		splitter accessUnitSplitter
		builder  unitBuilder
	)

	buf := make([]byte, readChunk)
	for {
		n, err := c.stdout.Read(buf)
		if n > 0 {
			for _, au := range splitter.Write(buf[:n]) {
				if err := c.deliver(&builder, au); err != nil {
					c.cancel()
					return err
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read ffmpeg output: %w", err)
		}
	}

	if au := splitter.Flush(); au != nil {
		if err := c.deliver(&builder, au); err != nil {
			return err
		}
	}
	return nil
}

// deliver queues the output units of one access unit. Frames are stamped
// with input timestamps in order, as the encoder runs without B-frames.
func (c *Codec) deliver(builder *unitBuilder, au []byte) error {
	units, frame, err := builder.build(au)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return nil
	}

	c.mu.Lock()
	if frame && len(c.ptsQueue) > 0 {
		units[len(units)-1].pts = c.ptsQueue[0]
		c.ptsQueue = c.ptsQueue[1:]
	}
	c.ready = append(c.ready, units...)
	c.mu.Unlock()

	c.signal()
	return nil
}

func (c *Codec) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Codec) Stop() error {
	if c.state != stateRunning {
		return nil
	}

	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()

	c.cancel()
	<-c.done
	c.state = stateStopped
	return nil
}

func (c *Codec) Release() error {
	err := c.Stop()
	c.slots = nil
	c.state = stateReleased
	return err
}

func (c *Codec) DequeueInputBuffer(timeout time.Duration) (int, error) {
	if c.state != stateRunning || c.eosQueued {
		return 0, fmt.Errorf("%w: dequeue input while %s", ErrInvalidState, c.stateName())
	}

	select {
	case index := <-c.free:
		return index, nil
	default:
	}
	if timeout == 0 {
		return 0, ports.ErrTryAgainLater
	}

	expired, stop := after(timeout)
	defer stop()

	select {
	case index := <-c.free:
		return index, nil
	case <-c.done:
		return 0, c.exitError()
	case <-expired:
		return 0, ports.ErrTryAgainLater
	}
}

func (c *Codec) InputBuffer(index int) ([]byte, error) {
	if index < 0 || index >= len(c.slots) {
		return nil, fmt.Errorf("%w: input %d", ErrBadIndex, index)
	}
	return c.slots[index], nil
}

func (c *Codec) QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags ports.BufferFlags) error {
	if c.state != stateRunning || c.eosQueued {
		return fmt.Errorf("%w: queue input while %s", ErrInvalidState, c.stateName())
	}
	if index < 0 || index >= len(c.slots) {
		return fmt.Errorf("%w: input %d", ErrBadIndex, index)
	}
	if offset < 0 || size < 0 || offset+size > len(c.slots[index]) {
		return fmt.Errorf("%w: range %d+%d outside input %d", ErrBadIndex, offset, size, index)
	}

	item := inputItem{index: index, offset: offset, size: size, pts: presentationTimeUs}
	if flags.Has(ports.BufferFlagEndOfStream) {
		item.eos = true
		c.eosQueued = true
	}
	c.queued <- item
	return nil
}

func (c *Codec) DequeueOutputBuffer(timeout time.Duration) (int, ports.BufferInfo, error) {
	if c.state != stateRunning {
		return 0, ports.BufferInfo{}, fmt.Errorf("%w: dequeue output while %s", ErrInvalidState, c.stateName())
	}

	var (
		expired <-chan time.Time
		stop    = func() {}
	)
	if timeout > 0 {
		expired, stop = after(timeout)
	}
	defer stop()

	for {
		c.mu.Lock()
		if len(c.ready) > 0 {
			unit := c.ready[0]
			c.ready = c.ready[1:]
			index := c.hold(unit.data)
			c.mu.Unlock()
			return index, ports.BufferInfo{Size: len(unit.data), PresentationTimeUs: unit.pts, Flags: unit.flags}, nil
		}
		if c.exited {
			switch {
			case c.exitErr != nil:
				err := c.exitErr
				c.mu.Unlock()
				return 0, ports.BufferInfo{}, err
			case !c.eosQueued:
				c.mu.Unlock()
				return 0, ports.BufferInfo{}, fmt.Errorf("%w: before end of stream", ErrProcessExited)
			case !c.eosSent:
				c.eosSent = true
				index := c.hold(nil)
				c.mu.Unlock()
				return index, ports.BufferInfo{Flags: ports.BufferFlagEndOfStream}, nil
			}
			c.mu.Unlock()
			return 0, ports.BufferInfo{}, ports.ErrTryAgainLater
		}
		c.mu.Unlock()

		if timeout == 0 {
			return 0, ports.BufferInfo{}, ports.ErrTryAgainLater
		}
		select {
		case <-c.notify:
		case <-expired:
			return 0, ports.BufferInfo{}, ports.ErrTryAgainLater
		}
	}
}

// hold registers data as a dequeued output buffer. c.mu must be held.
func (c *Codec) hold(data []byte) int {
	index := c.nextOut
	c.nextOut++
	c.held[index] = data
	return index
}

func (c *Codec) OutputBuffer(index int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.held[index]
	if !ok {
		return nil, fmt.Errorf("%w: output %d", ErrBadIndex, index)
	}
	return data, nil
}

func (c *Codec) ReleaseOutputBuffer(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.held[index]; !ok {
		return fmt.Errorf("%w: output %d", ErrBadIndex, index)
	}
	delete(c.held, index)
	return nil
}

func (c *Codec) exitError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exitErr != nil {
		return c.exitErr
	}
	return ErrProcessExited
}

func (c *Codec) stateName() string {
	switch c.state {
	case stateUninitialized:
		return "uninitialized"
	case stateConfigured:
		return "configured"
	case stateRunning:
		if c.eosQueued {
			return "draining"
		}
		return "running"
	case stateStopped:
		return "stopped"
	default:
		return "released"
	}
}

// after returns a channel that fires once timeout elapses. A negative
// timeout never fires.
func after(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	t := time.NewTimer(timeout)
	return t.C, func() { t.Stop() }
}

// packNV12 returns frame as tightly packed NV12. Luma rows of frame may be
// padded; the row stride is derived from the frame size. Padded frames are
// repacked into scratch.
func packNV12(scratch *[]byte, frame []byte, width, height int) ([]byte, error) {
	chromaSize := width * height / 2
	size := width*height + chromaSize
	if len(frame) < size {
		return nil, fmt.Errorf("ffmpegcodec: frame of %d bytes too small for %dx%d", len(frame), width, height)
	}

	lumaStride := (len(frame) - chromaSize) / height
	if lumaStride == width {
		return frame[:size], nil
	}

	if cap(*scratch) < size {
		*scratch = make([]byte, size)
	}
	dst := (*scratch)[:size]

	for y := 0; y < height; y++ {
		copy(dst[y*width:(y+1)*width], frame[y*lumaStride:])
	}
	copy(dst[width*height:], frame[lumaStride*height:lumaStride*height+chromaSize])
	return dst, nil
}

var _ ports.Codec = (*Codec)(nil)
