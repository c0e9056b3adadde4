package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// FileSource replays interleaved little-endian float32 I/Q (cf32) from a
// reader, such as a capture written with rawio.WriteComplex64. Samples are
// decoded by FormatF32, which shares the rawio codec.
type FileSource struct {
	r      *bufio.Reader
	closer io.Closer
	mtu    int
	tuning Tuning
}

// NewFileSource wraps r. The tuning is reported as given.
func NewFileSource(r io.Reader, mtu int, tuning Tuning) *FileSource {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	s := &FileSource{
		r:      bufio.NewReaderSize(r, mtu*FormatF32.BytesPerSample()),
		mtu:    mtu,
		tuning: tuning,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenFileSource opens a capture file for replay.
func OpenFileSource(path string, mtu int, tuning Tuning) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening capture: %w", err)
	}
	return NewFileSource(f, mtu, tuning), nil
}

// Read returns the next block. A trailing partial block is returned short;
// after that Read reports ErrStreamClosed.
func (s *FileSource) Read(ctx context.Context, _ time.Duration) ([]complex64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := make([]byte, s.mtu*FormatF32.BytesPerSample())
	read, err := io.ReadFull(s.r, raw)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("error reading capture: %w", err)
	}

	block := make([]complex64, read/FormatF32.BytesPerSample())
	n := FormatF32.Decode(raw[:read], block)
	if n == 0 {
		return nil, ErrStreamClosed
	}
	return block[:n], nil
}

func (s *FileSource) MaxTransferUnit() int {
	return s.mtu
}

func (s *FileSource) Tuning() Tuning {
	return s.tuning
}

// Close closes the underlying reader if it is closable.
func (s *FileSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
