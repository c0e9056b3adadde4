package pipeline

import (
	"slices"
	"testing"
)

func TestEMA(t *testing.T) {
	e := NewEMA(4, 0.5)
	a := []float32{3, 4, 5, 6}

	if got, want := e.Update(a), []float32{1.5, 2, 2.5, 3}; !slices.Equal(got, want) {
		t.Errorf("first Update() = %v, want %v", got, want)
	}
	if got, want := e.Update(a), []float32{2.25, 3, 3.75, 4.5}; !slices.Equal(got, want) {
		t.Errorf("second Update() = %v, want %v", got, want)
	}

	e.Reset()
	if got := e.Values(); !slices.Equal(got, []float32{0, 0, 0, 0}) {
		t.Errorf("Values() after Reset = %v", got)
	}
}

func TestEMAZeroCoefficientTracksInput(t *testing.T) {
	e := NewEMA(2, 0)
	e.Update([]float32{1, 2})
	if got := e.Update([]float32{7, 9}); !slices.Equal(got, []float32{7, 9}) {
		t.Errorf("Update() = %v, want the latest input", got)
	}
}

func TestWaterfallSlidingWindow(t *testing.T) {
	w := NewWaterfall(3, 2)

	if got := w.Rows(); !slices.Equal(got[0], []float32{0, 0}) || !slices.Equal(got[2], []float32{0, 0}) {
		t.Fatalf("initial rows = %v, want zeros", got)
	}

	for i := 1; i <= 5; i++ {
		w.Push([]float32{float32(i), float32(10 * i)})
	}

	want := [][]float32{{3, 30}, {4, 40}, {5, 50}}
	got := w.Rows()
	if len(got) != len(want) {
		t.Fatalf("len(Rows()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWaterfallPartialFill(t *testing.T) {
	w := NewWaterfall(3, 1)
	w.Push([]float32{1})

	got := w.Rows()
	want := [][]float32{{0}, {0}, {1}}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWaterfallCopiesRows(t *testing.T) {
	w := NewWaterfall(2, 2)
	row := []float32{1, 2}
	w.Push(row)
	row[0] = 99

	if got := w.Rows()[1]; got[0] != 1 {
		t.Errorf("waterfall aliased the pushed row: %v", got)
	}

	w.Reset()
	if got := w.Rows()[1]; !slices.Equal(got, []float32{0, 0}) {
		t.Errorf("row after Reset = %v", got)
	}
}

func TestFloor(t *testing.T) {
	f := NewFloor(3)
	f.Update([]float32{5, 1, 3})
	f.Update([]float32{4, 2, 6})

	if got, want := f.Values(), []float32{4, 1, 3}; !slices.Equal(got, want) {
		t.Errorf("Values() = %v, want %v", got, want)
	}

	f.Reset()
	f.Update([]float32{9, 9, 9})
	if got, want := f.Values(), []float32{9, 9, 9}; !slices.Equal(got, want) {
		t.Errorf("Values() after Reset = %v, want %v", got, want)
	}
}
