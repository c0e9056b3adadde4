package sdr

import (
	"context"
	"errors"
	"time"
)

// DefaultMTU is the block size, in complex samples, used when a source is
// not told otherwise.
const DefaultMTU = 65536

var (
	// ErrReadTimeout is returned by Source.Read when no block arrived within
	// the bounded wait. It is not fatal; callers re-check liveness and retry.
	ErrReadTimeout = errors.New("read timed out")

	// ErrStreamClosed is returned once a source has no more samples to give.
	ErrStreamClosed = errors.New("sample stream closed")
)

// Source is a producer of fixed-size blocks of complex baseband samples.
type Source interface {
	// Read returns the next block, waiting at most timeout for it. Any error
	// other than ErrReadTimeout or a context error means the link is broken.
	Read(ctx context.Context, timeout time.Duration) ([]complex64, error)

	// MaxTransferUnit is the largest block Read may return.
	MaxTransferUnit() int
}

// Tuning describes what a source is listening to.
type Tuning struct {
	CenterFrequency float64 `json:"centerFrequency"` // Hz
	SampleRate      float64 `json:"sampleRate"`      // samples per second
}

// Tuned is implemented by sources that know their tuning.
type Tuned interface {
	Tuning() Tuning
}

// ErrNotTunable is returned when a source can't change frequency while
// streaming.
var ErrNotTunable = errors.New("source can't be retuned")

// Retuner is implemented by sources that can change centre frequency
// while streaming.
type Retuner interface {
	Retune(centerFrequency float64) (Tuning, error)
}
