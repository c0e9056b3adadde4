package pipeline

import "sync/atomic"

// Frame is a queued item stamped with the tuning generation that was
// current when its samples were read.
type Frame[T any] struct {
	Gen  uint64
	Data T
}

// generation counts retunes. Stages discard frames from older generations
// and drop their own accumulated state when a newer one arrives.
type generation struct {
	n atomic.Uint64
}

// current returns the live generation; a nil generation is always zero.
func (g *generation) current() uint64 {
	if g == nil {
		return 0
	}
	return g.n.Load()
}

func (g *generation) advance() uint64 {
	return g.n.Add(1)
}

// stale reports whether a frame from gen predates the live generation.
func (g *generation) stale(gen uint64) bool {
	return gen < g.current()
}
