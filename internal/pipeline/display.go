package pipeline

import (
	"sync"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

// Snapshot is a consistent copy of the published display state.
type Snapshot struct {
	Seq      uint64      `json:"seq"`
	Tuning   sdr.Tuning  `json:"tuning"`
	Filtered []float32   `json:"filtered"`
	Floor    []float32   `json:"floor"`
	History  [][]float32 `json:"history"` // oldest row first
}

// Display is the state shared between the smoothing stage and its readers.
// The writer skips a cycle instead of waiting on readers, and readers may
// choose to use stale data instead of waiting on the writer.
type Display struct {
	mu       sync.RWMutex
	seq      uint64
	tuning   sdr.Tuning
	filtered []float32
	floor    []float32
	history  [][]float32
}

// NewDisplay allocates zeroed state for ntime rows of nch channels.
func NewDisplay(ntime, nch int) *Display {
	history := make([][]float32, ntime)
	for i := range history {
		history[i] = make([]float32, nch)
	}
	return &Display{
		filtered: make([]float32, nch),
		floor:    make([]float32, nch),
		history:  history,
	}
}

// TryPublish copies the given state in unless the display is locked, in
// which case it returns false and nothing changes.
func (d *Display) TryPublish(filtered, floor []float32, history *Waterfall) bool {
	if !d.mu.TryLock() {
		return false
	}
	defer d.mu.Unlock()

	copy(d.filtered, filtered)
	copy(d.floor, floor)
	history.CopyTo(d.history)
	d.seq++

	return true
}

// SetTuning records a new tuning. It waits for readers.
func (d *Display) SetTuning(t sdr.Tuning) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tuning = t
}

// TrySnapshot copies the state out unless a publish is in progress.
func (d *Display) TrySnapshot() (Snapshot, bool) {
	if !d.mu.TryRLock() {
		return Snapshot{}, false
	}
	defer d.mu.RUnlock()

	return d.snapshot(), true
}

// Snapshot copies the state out, waiting for a publish in progress.
func (d *Display) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.snapshot()
}

// Seq returns the number of successful publishes.
func (d *Display) Seq() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.seq
}

func (d *Display) snapshot() Snapshot {
	history := make([][]float32, len(d.history))
	for i, row := range d.history {
		history[i] = append([]float32(nil), row...)
	}
	return Snapshot{
		Seq:      d.seq,
		Tuning:   d.tuning,
		Filtered: append([]float32(nil), d.filtered...),
		Floor:    append([]float32(nil), d.floor...),
		History:  history,
	}
}
