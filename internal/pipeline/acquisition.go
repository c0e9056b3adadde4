package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

// powerSmoothing is the EMA coefficient of the input power estimate.
const powerSmoothing = 0.999

// Acquisition pulls sample blocks from a source and hands them downstream.
type Acquisition struct {
	source      sdr.Source
	out         *Queue[Frame[[]complex64]]
	gen         *generation
	timeout     time.Duration
	reportEvery int
	logger      *slog.Logger

	blocks  uint64
	samples uint64
	power   float64
}

// Run reads until ctx is done or the source fails. Read timeouts are not
// failures; any other source error ends the stage and is returned. The
// output queue is closed on return so downstream stages can drain it.
func (a *Acquisition) Run(ctx context.Context) error {
	defer a.out.Close()

	a.logger.Info("acquisition started", slog.Int("mtu", a.source.MaxTransferUnit()))

	windowStart := time.Now()
	var windowSamples uint64

	for {
		// Loaded before the read: a block read across a retune is
		// attributed to the older tuning.
		gen := a.gen.current()

		block, err := a.source.Read(ctx, a.timeout)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sdr.ErrReadTimeout) {
			a.logger.Debug("no samples within timeout", slog.Duration("timeout", a.timeout))
			continue
		}
		if errors.Is(err, sdr.ErrStreamClosed) {
			a.logger.Info("end of stream",
				slog.String("blocks", humanize.Comma(int64(a.blocks))),
				slog.String("samples", humanize.Comma(int64(a.samples))))
			return fmt.Errorf("acquisition: %w", err)
		}
		if err != nil {
			return fmt.Errorf("acquisition: %w", err)
		}

		a.trackPower(block)
		a.out.Offer(Frame[[]complex64]{Gen: gen, Data: block})

		a.blocks++
		a.samples += uint64(len(block))
		windowSamples += uint64(len(block))

		if a.blocks%uint64(a.reportEvery) == 0 {
			elapsed := time.Since(windowStart)
			a.report(windowSamples, elapsed)

			windowStart = time.Now()
			windowSamples = 0
		}
	}
}

func (a *Acquisition) trackPower(block []complex64) {
	if len(block) == 0 {
		return
	}

	var sum float64
	for _, z := range block {
		re, im := float64(real(z)), float64(imag(z))
		sum += re*re + im*im
	}
	mean := sum / float64(len(block))

	if a.blocks == 0 {
		a.power = mean
		return
	}
	a.power = a.power*powerSmoothing + mean*(1-powerSmoothing)
}

// PowerDB returns the smoothed mean input power in dB.
func (a *Acquisition) PowerDB() float64 {
	return 10 * math.Log10(a.power)
}

func (a *Acquisition) report(samples uint64, elapsed time.Duration) {
	var rate float64
	if elapsed > 0 {
		rate = float64(samples) / elapsed.Seconds()
	}

	a.logger.Info("acquisition throughput",
		slog.String("rate", humanize.SIWithDigits(rate, 2, "S/s")),
		slog.String("samples", humanize.Comma(int64(a.samples))),
		slog.String("blocks", humanize.Comma(int64(a.blocks))),
		slog.Int("queued", a.out.Len()),
		slog.Int("capacity", a.out.Cap()),
		slog.Uint64("dropped", a.out.Dropped()),
		slog.String("power", fmt.Sprintf("%.1f dB", a.PowerDB())))
}
