package sdr

import (
	"context"
	"errors"
	"math/cmplx"
	"testing"
	"time"
)

func TestToneSourceRead(t *testing.T) {
	src := NewToneSource(ToneConfig{
		SampleRate: 1_000_000,
		Offset:     250_000,
		Amplitude:  1,
	}, 8)

	block, err := src.Read(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(block) != src.MaxTransferUnit() {
		t.Fatalf("len(block) = %d, want %d", len(block), src.MaxTransferUnit())
	}

	// A quarter of the sample rate advances the phase by pi/2 per sample.
	want := []complex128{1, 1i, -1, -1i}
	for i, w := range want {
		if got := complex128(block[i]); cmplx.Abs(got-w) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestToneSourceNoiseIsSeeded(t *testing.T) {
	config := ToneConfig{SampleRate: 1_000_000, Noise: 0.1, Seed: 42}

	a, _ := NewToneSource(config, 16).Read(context.Background(), time.Second)
	b, _ := NewToneSource(config, 16).Read(context.Background(), time.Second)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between identically seeded sources", i)
		}
	}
}

func TestToneSourcePacedTimeout(t *testing.T) {
	src := NewToneSource(ToneConfig{SampleRate: 1000, Paced: true}, 1000)
	ctx := context.Background()

	if _, err := src.Read(ctx, time.Second); err != nil {
		t.Fatalf("first Read() error = %v", err)
	}

	// The next block is due a full second later.
	_, err := src.Read(ctx, 10*time.Millisecond)
	if !errors.Is(err, ErrReadTimeout) {
		t.Errorf("Read() error = %v, want ErrReadTimeout", err)
	}
}

func TestToneSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewToneSource(ToneConfig{}, 4).Read(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

func TestToneSourceTuning(t *testing.T) {
	src := NewToneSource(ToneConfig{CenterFrequency: 100e6, SampleRate: 2e6}, 4)
	if got := src.Tuning(); got.CenterFrequency != 100e6 || got.SampleRate != 2e6 {
		t.Errorf("Tuning() = %+v", got)
	}
}

func TestToneSourceRetune(t *testing.T) {
	src := NewToneSource(ToneConfig{
		CenterFrequency: 100e6,
		SampleRate:      1_000_000,
		Offset:          250_000,
		Amplitude:       1,
	}, 4)

	var _ Retuner = src

	// Moving the centre up by 500 kHz puts the tone at -250 kHz.
	got, err := src.Retune(100.5e6)
	if err != nil {
		t.Fatalf("Retune() error = %v", err)
	}
	if got.CenterFrequency != 100.5e6 || got.SampleRate != 1_000_000 {
		t.Errorf("Retune() = %+v", got)
	}

	block, err := src.Read(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []complex128{1, -1i, -1, 1i}
	for i, w := range want {
		if got := complex128(block[i]); cmplx.Abs(got-w) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}

	if _, err := src.Retune(0); err == nil {
		t.Error("Retune(0) error = nil, want error")
	}
}
