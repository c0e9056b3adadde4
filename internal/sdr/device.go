package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultBacklog is the number of decoded blocks buffered between the
	// receiver process and Read.
	DefaultBacklog = 16
)

// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
var ErrBrokenPipe = errors.New("broken pipe")

// Handler describes an external receiver tool that streams raw I/Q to stdout.
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Format() SampleFormat
	Tuning() Tuning
	Device() string
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.handler.Device()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithMTU sets the number of complex samples per block.
func WithMTU(mtu int) func(d *Device) {
	return func(d *Device) {
		if mtu > 0 {
			d.mtu = mtu
		}
	}
}

// WithBacklog sets how many blocks may queue up before the reader stalls
// the receiver process.
func WithBacklog(n int) func(d *Device) {
	return func(d *Device) {
		if n > 0 {
			d.backlog = n
		}
	}
}

// Device runs a receiver tool and exposes its output as a Source.
type Device struct {
	deviceID string
	handler  Handler
	mtu      int
	backlog  int

	blocks  chan []complex64
	stopped chan struct{}
	err     error // set before stopped is closed

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, h Handler, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID: deviceID,
		handler:  h,
		mtu:      DefaultMTU,
		backlog:  DefaultBacklog,
		logger:   logger,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// DeviceID returns the human-readable identifier of the device.
func (d *Device) DeviceID() string {
	return d.deviceID
}

// Device returns the device type.
func (d *Device) Device() string {
	return d.handler.Device()
}

// Tuning returns the tuning of the underlying receiver.
func (d *Device) Tuning() Tuning {
	return d.handler.Tuning()
}

// MaxTransferUnit returns the block size in complex samples.
func (d *Device) MaxTransferUnit() int {
	return d.mtu
}

// Start launches the receiver process. Blocks become available through Read
// until the process exits or ctx is cancelled.
func (d *Device) Start(ctx context.Context) error {
	if d.isStreaming.Load() {
		return fmt.Errorf("device is already running")
	}
	if err := d.handler.Format().Validate(); err != nil {
		return err
	}

	d.isStreaming.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)
	cmd := d.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.isStreaming.Store(false) // Reset running state on error
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.isStreaming.Store(false) // Reset running state on error
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		d.isStreaming.Store(false) // Reset running state on error
		return fmt.Errorf("error starting command: %w", err)
	}

	d.blocks = make(chan []complex64, d.backlog)
	d.stopped = make(chan struct{})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(d.stopped)

		d.logger.Info("starting sample streaming...")

		done := make(chan error, 2) // stdout and stderr readers

		go d.handleStdout(ctx, stdout, done)
		go d.handleStderr(stderr, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				d.cancel() // cancel context on error
				d.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		// Pipes are drained, so Wait can close them safely.
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			errs = append(errs, fmt.Errorf("command exited with error: %w", err))
		}

		d.logger.Info("sample streaming stopped")

		d.err = errors.Join(errs...)
		d.isStreaming.Store(false)
	}()

	return nil
}

// Read returns the next block of samples.
func (d *Device) Read(ctx context.Context, timeout time.Duration) ([]complex64, error) {
	if d.blocks == nil {
		return nil, fmt.Errorf("device is not running")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case block := <-d.blocks:
		return block, nil

	case <-d.stopped:
		select {
		case block := <-d.blocks:
			return block, nil
		default:
		}
		if d.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStreamClosed, d.err)
		}
		return nil, ErrStreamClosed

	case <-timer.C:
		return nil, ErrReadTimeout

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop terminates the receiver process and waits for the readers to finish.
func (d *Device) Stop() {
	if d.cancel == nil {
		return // never started
	}

	d.cancel()
	d.wg.Wait()
}

// IsStreaming returns true if the receiver process is running
func (d *Device) IsStreaming() bool {
	return d.isStreaming.Load()
}

// handleStdout slices stdout into MTU-sized blocks and decodes them.
func (d *Device) handleStdout(ctx context.Context, stdout io.Reader, done chan<- error) {
	format := d.handler.Format()
	raw := make([]byte, d.mtu*format.BytesPerSample())

	for {
		n, err := io.ReadFull(stdout, raw)
		if n >= format.BytesPerSample() {
			block := make([]complex64, n/format.BytesPerSample())
			format.Decode(raw[:n], block)

			select {
			case d.blocks <- block:
			case <-ctx.Done():
				done <- nil
				return
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, fs.ErrClosed):
			done <- nil
		default:
			done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		}
		return
	}
}

// handleStderr reads from stderr and logs it.
func (d *Device) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		d.logger.Warn(fmt.Sprintf("%s >> %s", d.handler.Device(), line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}
