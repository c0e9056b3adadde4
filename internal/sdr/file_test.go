package sdr

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

func TestFileSourceRead(t *testing.T) {
	samples := []complex64{1, 2i, 3, 4i, 5}

	var buf bytes.Buffer
	if err := rawio.WriteComplex64(&buf, samples); err != nil {
		t.Fatalf("WriteComplex64() error = %v", err)
	}
	buf.WriteByte(0xff) // torn trailing sample

	src := NewFileSource(&buf, 2, Tuning{CenterFrequency: 1e9, SampleRate: 2e6})
	ctx := context.Background()

	var got []complex64
	for {
		block, err := src.Read(ctx, time.Second)
		if errors.Is(err, ErrStreamClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if len(block) > src.MaxTransferUnit() {
			t.Fatalf("block of %d exceeds MTU %d", len(block), src.MaxTransferUnit())
		}
		got = append(got, block...)
	}

	if len(got) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], samples[i])
		}
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpenFileSourceMissing(t *testing.T) {
	if _, err := OpenFileSource(t.TempDir()+"/missing.cf32", 16, Tuning{}); err == nil {
		t.Error("expected an error for a missing capture")
	}
}
