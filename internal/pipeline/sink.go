package pipeline

import (
	"context"
	"log/slog"
)

// Sink receives every averaged spectrum that reached the smoothing stage.
type Sink interface {
	WriteSpectrum(spectrum []float32) error
}

// SinkStage drains its own queue into a Sink so slow I/O never holds up
// smoothing. Write failures are logged and the spectrum is lost.
type SinkStage struct {
	sink   Sink
	in     *Queue[[]float32]
	logger *slog.Logger

	failures uint64
}

func (s *SinkStage) Run(ctx context.Context) error {
	for {
		spectrum, err := s.in.Receive(ctx)
		if err != nil {
			return nil // cancelled or drained
		}

		if err = s.sink.WriteSpectrum(spectrum); err != nil {
			s.failures++
			s.logger.Error("sink write failed",
				slog.String("error", err.Error()),
				slog.Uint64("failures", s.failures))
		}
	}
}
