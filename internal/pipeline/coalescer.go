package pipeline

import "context"

// Coalescer collapses bursts of "new data" signals into at most one
// outstanding repaint request.
type Coalescer struct {
	slot chan struct{}
}

func NewCoalescer() *Coalescer {
	return &Coalescer{slot: make(chan struct{}, 1)}
}

// Notify requests a repaint. It returns false when one is already pending.
func (c *Coalescer) Notify() bool {
	select {
	case c.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Wait blocks until a repaint is requested and consumes the request.
func (c *Coalescer) Wait(ctx context.Context) error {
	select {
	case <-c.slot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports whether a repaint request is waiting.
func (c *Coalescer) Pending() bool {
	return len(c.slot) > 0
}

// Run calls repaint once per consumed request until ctx is done.
func (c *Coalescer) Run(ctx context.Context, repaint func()) error {
	for {
		if err := c.Wait(ctx); err != nil {
			return err
		}
		repaint()
	}
}
