package sdr

import (
	"fmt"

	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

const (
	// FormatU8 is interleaved unsigned 8-bit I/Q, offset binary (rtl_sdr).
	FormatU8 SampleFormat = "cu8"
	// FormatS8 is interleaved signed 8-bit I/Q (hackrf_transfer).
	FormatS8 SampleFormat = "cs8"
	// FormatF32 is interleaved little-endian float32 I/Q.
	FormatF32 SampleFormat = "cf32"
)

// SampleFormat is the wire encoding of a stream of complex samples.
type SampleFormat string

// BytesPerSample returns the size of one complex sample.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatU8, FormatS8:
		return 2
	case FormatF32:
		return 8
	default:
		return 0
	}
}

// Validate reports whether f is a known format.
func (f SampleFormat) Validate() error {
	if f.BytesPerSample() == 0 {
		return fmt.Errorf("unknown sample format: %q", string(f))
	}
	return nil
}

// Decode converts whole samples from p into dst and returns how many were
// written. Values are scaled to roughly [-1, 1].
func (f SampleFormat) Decode(p []byte, dst []complex64) int {
	bps := f.BytesPerSample()
	if bps == 0 {
		return 0
	}

	n := min(len(p)/bps, len(dst))
	switch f {
	case FormatU8:
		for i := 0; i < n; i++ {
			re := (float32(p[2*i]) - 127.5) / 127.5
			im := (float32(p[2*i+1]) - 127.5) / 127.5
			dst[i] = complex(re, im)
		}

	case FormatS8:
		for i := 0; i < n; i++ {
			re := float32(int8(p[2*i])) / 128
			im := float32(int8(p[2*i+1])) / 128
			dst[i] = complex(re, im)
		}

	case FormatF32:
		if err := rawio.DecodeComplex64(p[:8*n], dst[:n]); err != nil {
			return 0
		}
	}
	return n
}
