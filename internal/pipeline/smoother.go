package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Smoother owns the long-lived display state: the smoothed spectrum, the
// waterfall and the noise floor. Every averaged spectrum updates that
// state; publishing it to the Display is best effort.
type Smoother struct {
	ema       *EMA
	waterfall *Waterfall
	floor     *Floor

	display   *Display
	coalescer *Coalescer
	in        *Queue[Frame[[]float32]]
	sink      *Queue[[]float32] // nil without a sink
	gen       *generation
	logger    *slog.Logger

	reset   atomic.Pointer[ResetPolicy]
	last    uint64
	skipped uint64
	stale   uint64
}

// RequestReset schedules a reset to apply before the first spectrum of the
// next tuning generation.
func (s *Smoother) RequestReset(policy ResetPolicy) {
	s.reset.Store(&policy)
}

func (s *Smoother) Run(ctx context.Context) error {
	if s.sink != nil {
		defer s.sink.Close()
	}

	for {
		frame, err := s.in.Receive(ctx)
		if err != nil {
			return nil // cancelled or drained
		}

		s.Process(frame)
	}
}

// Process applies one averaged spectrum. Spectra from an earlier tuning
// generation are discarded.
func (s *Smoother) Process(frame Frame[[]float32]) {
	if s.gen.stale(frame.Gen) {
		s.stale++
		s.logger.Debug("spectrum from previous tuning discarded", slog.Uint64("stale", s.stale))
		return
	}
	if frame.Gen != s.last {
		if policy := s.reset.Swap(nil); policy != nil {
			s.apply(*policy)
		}
		s.last = frame.Gen
	}

	spectrum := frame.Data

	filtered := s.ema.Update(spectrum)
	s.waterfall.Push(spectrum)
	s.floor.Update(spectrum)

	if s.sink != nil {
		s.sink.Offer(spectrum)
	}

	if !s.display.TryPublish(filtered, s.floor.Values(), s.waterfall) {
		s.skipped++
		s.logger.Debug("display busy, publish skipped", slog.Uint64("skipped", s.skipped))
	}

	s.coalescer.Notify()
}

func (s *Smoother) apply(policy ResetPolicy) {
	if policy.Filter {
		s.ema.Reset()
	}
	if policy.History {
		s.waterfall.Reset()
	}
	if policy.Floor {
		s.floor.Reset()
	}
	s.logger.Info("display state reset",
		slog.Bool("filter", policy.Filter),
		slog.Bool("history", policy.History),
		slog.Bool("floor", policy.Floor))
}
