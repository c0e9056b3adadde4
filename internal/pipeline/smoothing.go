package pipeline

import "math"

// EMA is a per-channel single-pole low-pass filter:
// filtered = filtered*k + a*(1-k).
type EMA struct {
	k        float32
	filtered []float32
}

// NewEMA creates a filter over nch channels starting from zeros.
func NewEMA(nch int, k float64) *EMA {
	return &EMA{k: float32(k), filtered: make([]float32, nch)}
}

// Update folds a into the filter state and returns the state. The returned
// slice is owned by the filter.
func (e *EMA) Update(a []float32) []float32 {
	for i := range e.filtered {
		e.filtered[i] = e.filtered[i]*e.k + a[i]*(1-e.k)
	}
	return e.filtered
}

// Values returns the filter state. The returned slice is owned by the filter.
func (e *EMA) Values() []float32 {
	return e.filtered
}

// Reset zeroes the filter state.
func (e *EMA) Reset() {
	clear(e.filtered)
}

// Waterfall is a fixed-depth FIFO of the most recent spectra. Rows start as
// zeros; once full each Push evicts the oldest row.
type Waterfall struct {
	rows [][]float32
	head int // index of the oldest row
}

// NewWaterfall creates a history of ntime rows of nch channels.
func NewWaterfall(ntime, nch int) *Waterfall {
	rows := make([][]float32, ntime)
	for i := range rows {
		rows[i] = make([]float32, nch)
	}
	return &Waterfall{rows: rows}
}

// Push appends row as the newest entry.
func (w *Waterfall) Push(row []float32) {
	copy(w.rows[w.head], row)
	w.head = (w.head + 1) % len(w.rows)
}

// Depth returns the number of rows.
func (w *Waterfall) Depth() int {
	return len(w.rows)
}

// Rows returns a copy of the history, oldest row first.
func (w *Waterfall) Rows() [][]float32 {
	out := make([][]float32, len(w.rows))
	for i := range out {
		out[i] = make([]float32, len(w.rows[0]))
	}
	w.CopyTo(out)
	return out
}

// CopyTo copies the history into dst, oldest row first. dst must have the
// same shape as the waterfall.
func (w *Waterfall) CopyTo(dst [][]float32) {
	for i := range w.rows {
		copy(dst[i], w.rows[(w.head+i)%len(w.rows)])
	}
}

// Reset zeroes every row.
func (w *Waterfall) Reset() {
	for _, row := range w.rows {
		clear(row)
	}
	w.head = 0
}

// Floor tracks the per-channel minimum of the averaged spectra, a baseline
// for relative power displays.
type Floor struct {
	min  []float32
	seen bool
}

// NewFloor creates an empty floor over nch channels.
func NewFloor(nch int) *Floor {
	return &Floor{min: make([]float32, nch)}
}

// Update lowers the floor wherever s is below it.
func (f *Floor) Update(s []float32) {
	if !f.seen {
		copy(f.min, s)
		f.seen = true
		return
	}
	for i, v := range s {
		f.min[i] = float32(math.Min(float64(f.min[i]), float64(v)))
	}
}

// Values returns the floor. The returned slice is owned by the tracker.
func (f *Floor) Values() []float32 {
	return f.min
}

// Reset forgets the floor.
func (f *Floor) Reset() {
	clear(f.min)
	f.seen = false
}
