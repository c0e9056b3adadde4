package pipeline

import (
	"context"
	"log/slog"
)

// Averaging turns every n consecutive power spectra into their mean.
type Averaging struct {
	averager *Averager
	in       *Queue[Frame[[]float32]]
	out      *Queue[Frame[[]float32]]
	gen      *generation
	logger   *slog.Logger

	last     uint64
	rejected uint64
	stale    uint64
}

func (a *Averaging) Run(ctx context.Context) error {
	defer a.out.Close()

	for {
		frame, err := a.in.Receive(ctx)
		if err != nil {
			return nil // cancelled or drained
		}

		if a.gen.stale(frame.Gen) {
			a.stale++
			a.logger.Debug("spectrum from previous tuning discarded", slog.Uint64("stale", a.stale))
			continue
		}
		if frame.Gen != a.last {
			if pending := a.averager.Pending(); pending > 0 {
				a.logger.Info("partial average discarded after retune", slog.Int("pending", pending))
			}
			a.averager.Reset()
			a.last = frame.Gen
		}

		mean, ok, err := a.averager.Add(frame.Data)
		if err != nil {
			a.logger.Warn("spectrum dropped", slog.String("reason", err.Error()))
			continue
		}
		if !ok {
			continue
		}

		if !AllPositive(mean) {
			a.rejected++
			a.logger.Warn("averaged spectrum has non-positive channels, discarded",
				slog.Uint64("rejected", a.rejected))
			continue
		}

		a.out.Offer(Frame[[]float32]{Gen: frame.Gen, Data: mean})
	}
}
