package pipeline

import (
	"context"
	"log/slog"
)

// Channelizer turns a block of samples into zero or more channel vectors,
// indexed (time step, channel). Implementations may keep state between
// blocks.
type Channelizer interface {
	Analyze(block []complex64) [][]complex64
}

// resetter is implemented by channelizers that buffer samples across
// blocks.
type resetter interface {
	Reset()
}

// Channelization converts blocks to centred power spectra.
type Channelization struct {
	channelizer Channelizer
	in          *Queue[Frame[[]complex64]]
	out         *Queue[Frame[[]float32]]
	gen         *generation
	logger      *slog.Logger

	last  uint64
	stale uint64
}

func (c *Channelization) Run(ctx context.Context) error {
	defer c.out.Close()

	power := make([]float32, 0)

	for {
		frame, err := c.in.Receive(ctx)
		if err != nil {
			return nil // cancelled or drained
		}

		if c.gen.stale(frame.Gen) {
			c.stale++
			c.logger.Debug("block from previous tuning discarded", slog.Uint64("stale", c.stale))
			continue
		}
		if frame.Gen != c.last {
			if r, ok := c.channelizer.(resetter); ok {
				r.Reset()
			}
			c.last = frame.Gen
		}

		for _, step := range c.channelizer.Analyze(frame.Data) {
			power = Power(step, power)
			c.out.Offer(Frame[[]float32]{Gen: frame.Gen, Data: Center(power)})
		}
	}
}
