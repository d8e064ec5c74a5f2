package ffmpeg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"framex/internal/extract"
	"framex/internal/logging"
)

type decoderState int

const (
	stateIdle decoderState = iota
	stateConfigured
	stateRunning
	stateStopped
	stateReleased
)

var (
	errNotConfigured = errors.New("ffmpeg decoder: not configured")
	errNotRunning    = errors.New("ffmpeg decoder: not running")
)

type packet struct {
	slot int
	data []byte
	eos  bool
}

// Decoder drives one ffmpeg process. Its methods are meant to be called
// from a single goroutine; the reader and writer goroutines it starts are
// internal.
type Decoder struct {
	binary string
	format string
	slots  int
	logger *slog.Logger

	state   decoderState
	track   extract.TrackFormat
	surface extract.Surface
	width   int
	height  int

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	free    chan int
	inputs  chan packet
	outputs chan extract.OutputStatus
	done    chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	buffers   map[int][]byte
	nextIndex int

	stopOnce sync.Once
}

func newDecoder(binary, format string, slots int, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Decoder{
		binary:  binary,
		format:  format,
		slots:   slots,
		logger:  logger,
		buffers: make(map[int][]byte),
	}
}

// Configure implements extract.Decoder.
func (d *Decoder) Configure(format extract.TrackFormat, surface extract.Surface) error {
	if d.state != stateIdle && d.state != stateConfigured {
		return fmt.Errorf("ffmpeg decoder: configure in state %d", d.state)
	}
	if surface == nil {
		return errors.New("ffmpeg decoder: nil surface")
	}
	width, height := surface.Size()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("ffmpeg decoder: invalid surface size %dx%d", width, height)
	}
	d.track = format
	d.surface = surface
	d.width = width
	d.height = height
	d.state = stateConfigured
	return nil
}

// Args returns the ffmpeg arguments for the configured track and surface.
// Raw elementary streams carry no display matrix, so the track rotation is
// applied as a filter ahead of scaling.
func (d *Decoder) Args() []string {
	filter := fmt.Sprintf("scale=%d:%d", d.width, d.height)
	if rotate := rotationFilter(d.track.Rotation); rotate != "" {
		filter = rotate + "," + filter
	}
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", d.format,
		"-i", "pipe:0",
		"-an", "-sn",
		"-fps_mode", "passthrough",
		"-vf", filter,
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	}
}

// rotationFilter returns the filter that turns coded frames upright for a
// clockwise rotation, or "" when none is needed.
func rotationFilter(rotation int) string {
	switch extract.NormalizeRotation(rotation) {
	case 90:
		return "transpose=clock"
	case 180:
		return "hflip,vflip"
	case 270:
		return "transpose=cclock"
	default:
		return ""
	}
}

// Start implements extract.Decoder.
func (d *Decoder) Start() error {
	if d.state != stateConfigured {
		return errNotConfigured
	}
	cmd := exec.Command(d.binary, d.Args()...)
	cmd.Stderr = &d.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = stdout
	d.free = make(chan int, d.slots)
	for i := 0; i < d.slots; i++ {
		d.free <- i
	}
	d.inputs = make(chan packet, d.slots)
	d.outputs = make(chan extract.OutputStatus, d.slots+4)
	d.done = make(chan struct{})
	d.state = stateRunning

	d.logger.Debug("ffmpeg started",
		logging.String("binary", d.binary),
		logging.String("format", d.format),
		logging.Int("width", d.width),
		logging.Int("height", d.height),
		logging.Int("pid", cmd.Process.Pid),
	)

	d.wg.Add(2)
	go d.writeLoop()
	go d.readLoop()
	return nil
}

// DequeueInput implements extract.Decoder.
func (d *Decoder) DequeueInput(timeout time.Duration) (int, bool) {
	if d.state != stateRunning {
		return 0, false
	}
	select {
	case slot := <-d.free:
		return slot, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case slot := <-d.free:
		return slot, true
	case <-timer.C:
		return 0, false
	case <-d.done:
		return 0, false
	}
}

// QueueInput implements extract.Decoder.
func (d *Decoder) QueueInput(slot int, data []byte, _ time.Duration, eos bool) error {
	if d.state != stateRunning {
		return errNotRunning
	}
	if slot < 0 || slot >= d.slots {
		return fmt.Errorf("ffmpeg decoder: invalid input slot %d", slot)
	}
	pkt := packet{slot: slot, data: append([]byte(nil), data...), eos: eos}
	select {
	case d.inputs <- pkt:
		return nil
	case <-d.done:
		return errNotRunning
	}
}

// DequeueOutput implements extract.Decoder.
func (d *Decoder) DequeueOutput(timeout time.Duration) extract.OutputStatus {
	if d.state != stateRunning {
		return extract.OutputStatus{Kind: extract.OutputTryAgain}
	}
	select {
	case status := <-d.outputs:
		return status
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case status := <-d.outputs:
		return status
	case <-timer.C:
		return extract.OutputStatus{Kind: extract.OutputTryAgain}
	}
}

// ReleaseOutput implements extract.Decoder.
func (d *Decoder) ReleaseOutput(index int, render bool) error {
	d.mu.Lock()
	frame, ok := d.buffers[index]
	delete(d.buffers, index)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("ffmpeg decoder: unknown output buffer %d", index)
	}
	if render && len(frame) > 0 {
		d.surface.Post(frame)
	}
	return nil
}

// Stop implements extract.Decoder. It terminates the process and waits for
// the internal goroutines.
func (d *Decoder) Stop() error {
	if d.state != stateRunning {
		return nil
	}
	d.stopOnce.Do(func() {
		close(d.done)
		if d.cmd.Process != nil {
			_ = d.cmd.Process.Kill()
		}
	})
	d.wg.Wait()
	d.state = stateStopped
	return nil
}

// Release implements extract.Decoder.
func (d *Decoder) Release() error {
	if d.state == stateReleased {
		return nil
	}
	if err := d.Stop(); err != nil {
		return err
	}
	d.mu.Lock()
	d.buffers = make(map[int][]byte)
	d.mu.Unlock()
	d.state = stateReleased
	return nil
}

func (d *Decoder) writeLoop() {
	defer d.wg.Done()
	var writeErr error
	for {
		select {
		case <-d.done:
			return
		case pkt := <-d.inputs:
			if writeErr == nil && len(pkt.data) > 0 {
				if _, err := d.stdin.Write(pkt.data); err != nil {
					writeErr = err
					d.logger.Debug("ffmpeg input write failed", logging.Error(err))
				}
			}
			if pkt.eos {
				_ = d.stdin.Close()
			}
			select {
			case d.free <- pkt.slot:
			case <-d.done:
				return
			}
		}
	}
}

func (d *Decoder) readLoop() {
	defer d.wg.Done()
	if !d.emit(extract.OutputStatus{Kind: extract.OutputFormatChanged}) {
		_ = d.cmd.Wait()
		return
	}
	frameSize := d.width * d.height * 4
	for {
		frame := make([]byte, frameSize)
		_, err := io.ReadFull(d.stdout, frame)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.logger.Debug("ffmpeg output read ended", logging.Error(err))
			}
			break
		}
		if !d.emit(extract.OutputStatus{Kind: extract.OutputBuffer, Index: d.store(frame), Size: frameSize}) {
			_ = d.cmd.Wait()
			return
		}
	}

	if err := d.cmd.Wait(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		select {
		case <-d.done:
			return
		default:
		}
		d.logger.Debug("ffmpeg exited with error",
			logging.Int("exit_code", code),
			logging.String("stderr", tail(d.stderr.String(), 512)),
		)
		if !d.emit(extract.OutputStatus{Kind: extract.OutputError, Code: code}) {
			return
		}
	}
	d.emit(extract.OutputStatus{Kind: extract.OutputBuffer, Index: d.store(nil), EndOfStream: true})
}

func (d *Decoder) store(frame []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	index := d.nextIndex
	d.nextIndex++
	d.buffers[index] = frame
	return index
}

func (d *Decoder) emit(status extract.OutputStatus) bool {
	select {
	case d.outputs <- status:
		return true
	case <-d.done:
		return false
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// String describes the decoder for logs.
func (d *Decoder) String() string {
	return d.format + "@" + strconv.Itoa(d.width) + "x" + strconv.Itoa(d.height)
}
