package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type identityChannelizer struct {
	nch int
}

// Analyze splits the block into nch-sample steps, passing samples through.
func (c identityChannelizer) Analyze(block []complex64) [][]complex64 {
	var steps [][]complex64
	for len(block) >= c.nch {
		steps = append(steps, block[:c.nch])
		block = block[c.nch:]
	}
	return steps
}

func frame(gen uint64, data ...float32) Frame[[]float32] {
	return Frame[[]float32]{Gen: gen, Data: data}
}

func block(gen uint64, data ...complex64) Frame[[]complex64] {
	return Frame[[]complex64]{Gen: gen, Data: data}
}

func receiveWithin[T any](t *testing.T, q *Queue[T]) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("no item on queue %s: %v", q.Name(), err)
	}
	return v
}

func TestChannelizationCentresPower(t *testing.T) {
	in := NewQueue[Frame[[]complex64]]("raw", 4, discard)
	out := NewQueue[Frame[[]float32]]("spectra", 4, discard)
	stage := &Channelization{channelizer: identityChannelizer{nch: 4}, in: in, out: out, logger: discard}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	in.Offer(block(0, 1, 2, complex(0, 3), 4, 1, 1, 1, 1))

	if got, want := receiveWithin(t, out).Data, []float32{9, 16, 1, 4}; !slices.Equal(got, want) {
		t.Errorf("first spectrum = %v, want %v", got, want)
	}
	if got, want := receiveWithin(t, out).Data, []float32{1, 1, 1, 1}; !slices.Equal(got, want) {
		t.Errorf("second spectrum = %v, want %v", got, want)
	}
}

func TestAveragingForwardsMean(t *testing.T) {
	in := NewQueue[Frame[[]float32]]("spectra", 8, discard)
	out := NewQueue[Frame[[]float32]]("averaged", 8, discard)
	stage := &Averaging{averager: NewAverager(2, 4), in: in, out: out, logger: discard}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	in.Offer(frame(0, 1, 2, 3, 4))
	in.Offer(frame(0, 5, 6, 7, 8))

	if got, want := receiveWithin(t, out).Data, []float32{3, 4, 5, 6}; !slices.Equal(got, want) {
		t.Errorf("averaged = %v, want %v", got, want)
	}
}

func TestAveragingPositivityGuard(t *testing.T) {
	in := NewQueue[Frame[[]float32]]("spectra", 8, discard)
	out := NewQueue[Frame[[]float32]]("averaged", 8, discard)
	stage := &Averaging{averager: NewAverager(1, 2), in: in, out: out, logger: discard}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	in.Offer(frame(0, 1, 0))    // zero channel
	in.Offer(frame(0, -1, 2))   // negative channel
	in.Offer(frame(0, 1, 2, 3)) // wrong length
	in.Offer(frame(0, 5, 6))

	if got := receiveWithin(t, out).Data; !slices.Equal(got, []float32{5, 6}) {
		t.Errorf("forwarded %v, want only the positive spectrum", got)
	}
	if out.Len() != 0 {
		t.Errorf("%d unexpected spectra forwarded", out.Len())
	}
}

func newTestSmoother(nch, ntime int, k float64, sink *Queue[[]float32]) *Smoother {
	return &Smoother{
		ema:       NewEMA(nch, k),
		waterfall: NewWaterfall(ntime, nch),
		floor:     NewFloor(nch),
		display:   NewDisplay(ntime, nch),
		coalescer: NewCoalescer(),
		in:        NewQueue[Frame[[]float32]]("averaged", 4, discard),
		sink:      sink,
		logger:    discard,
	}
}

func TestSmootherPublishesAndNotifies(t *testing.T) {
	sink := NewQueue[[]float32]("sink", 4, discard)
	s := newTestSmoother(4, 2, 0.5, sink)

	s.Process(frame(0, 3, 4, 5, 6))
	s.Process(frame(0, 3, 4, 5, 6))

	snap := s.display.Snapshot()
	if want := []float32{2.25, 3, 3.75, 4.5}; !slices.Equal(snap.Filtered, want) {
		t.Errorf("Filtered = %v, want %v", snap.Filtered, want)
	}
	if snap.Seq != 2 {
		t.Errorf("Seq = %d, want 2", snap.Seq)
	}
	if !s.coalescer.Pending() {
		t.Error("expected a pending repaint")
	}
	if sink.Len() != 2 {
		t.Errorf("sink received %d spectra, want 2", sink.Len())
	}
}

func TestSmootherKeepsStateWhenPublishSkipped(t *testing.T) {
	s := newTestSmoother(2, 2, 0.5, nil)

	s.display.mu.RLock()
	s.Process(frame(0, 2, 2))
	s.display.mu.RUnlock()

	if s.display.Seq() != 0 {
		t.Fatal("publish should have been skipped")
	}

	s.Process(frame(0, 2, 2))
	if got, want := s.display.Snapshot().Filtered, []float32{1.5, 1.5}; !slices.Equal(got, want) {
		t.Errorf("Filtered = %v, want %v", got, want)
	}
}

func TestSmootherReset(t *testing.T) {
	s := newTestSmoother(2, 2, 0.5, nil)
	s.gen = &generation{}
	s.Process(frame(0, 4, 4))

	s.RequestReset(ResetPolicy{Filter: true})
	s.gen.advance()
	s.Process(frame(1, 2, 2))

	snap := s.display.Snapshot()
	if want := []float32{1, 1}; !slices.Equal(snap.Filtered, want) {
		t.Errorf("Filtered = %v, want %v", snap.Filtered, want)
	}
	// History was kept.
	if want := []float32{4, 4}; !slices.Equal(snap.History[0], want) {
		t.Errorf("History[0] = %v, want %v", snap.History[0], want)
	}
}

type recordingSink struct {
	mu      sync.Mutex
	spectra [][]float32
	err     error
}

func (s *recordingSink) WriteSpectrum(spectrum []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spectra = append(s.spectra, spectrum)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.spectra)
}

func TestSinkStageSurvivesErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	in := NewQueue[[]float32]("sink", 4, discard)
	stage := &SinkStage{sink: sink, in: in, logger: discard}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stage.Run(ctx) }()

	in.Offer([]float32{1})
	in.Offer([]float32{2})

	deadline := time.Now().Add(time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sink.count() != 2 {
		t.Errorf("sink saw %d spectra, want 2", sink.count())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

type scriptedSource struct {
	reads []error
	mtu   int
	fill  complex64
}

func (s *scriptedSource) Read(ctx context.Context, _ time.Duration) ([]complex64, error) {
	if len(s.reads) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	err := s.reads[0]
	s.reads = s.reads[1:]
	if err != nil {
		return nil, err
	}
	block := make([]complex64, s.mtu)
	for i := range block {
		block[i] = s.fill
	}
	return block, nil
}

func (s *scriptedSource) MaxTransferUnit() int {
	return s.mtu
}

func TestAcquisitionRetriesTimeouts(t *testing.T) {
	broken := errors.New("usb disconnected")
	src := &scriptedSource{reads: []error{sdr.ErrReadTimeout, nil, sdr.ErrReadTimeout, nil, broken}, mtu: 4}
	out := NewQueue[Frame[[]complex64]]("raw", 4, discard)
	stage := &Acquisition{source: src, out: out, timeout: time.Millisecond, reportEvery: 1, logger: discard}

	err := stage.Run(context.Background())
	if !errors.Is(err, broken) {
		t.Fatalf("Run() error = %v, want %v", err, broken)
	}
	if out.Len() != 2 {
		t.Errorf("forwarded %d blocks, want 2", out.Len())
	}
}

func TestAcquisitionNeverBlocksOnFullQueue(t *testing.T) {
	src := &scriptedSource{reads: []error{nil, nil, nil, io.ErrClosedPipe}, mtu: 2}
	out := NewQueue[Frame[[]complex64]]("raw", 1, discard)
	stage := &Acquisition{source: src, out: out, timeout: time.Millisecond, reportEvery: 100, logger: discard}

	if err := stage.Run(context.Background()); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", out.Dropped())
	}
}

func TestAveragingDiscardsPartialCycleOnRetune(t *testing.T) {
	gen := &generation{}
	in := NewQueue[Frame[[]float32]]("spectra", 8, discard)
	out := NewQueue[Frame[[]float32]]("averaged", 8, discard)
	stage := &Averaging{averager: NewAverager(2, 2), in: in, out: out, gen: gen, logger: discard}

	// One spectrum of a two-spectrum average, then a retune: the old
	// tuning's leftover and its queued spectrum never reach the mean.
	in.Offer(frame(0, 100, 100))
	gen.advance()
	in.Offer(frame(0, 100, 100))
	in.Offer(frame(1, 2, 4))
	in.Offer(frame(1, 4, 8))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	got := receiveWithin(t, out)
	if want := []float32{3, 6}; !slices.Equal(got.Data, want) {
		t.Errorf("averaged = %v, want %v", got.Data, want)
	}
	if got.Gen != 1 {
		t.Errorf("Gen = %d, want 1", got.Gen)
	}
}

func TestAveragingResetsOnNewGeneration(t *testing.T) {
	gen := &generation{}
	in := NewQueue[Frame[[]float32]]("spectra", 8, discard)
	out := NewQueue[Frame[[]float32]]("averaged", 8, discard)
	stage := &Averaging{averager: NewAverager(2, 2), in: in, out: out, gen: gen, logger: discard}

	// The retune lands after the old spectrum was already consumed.
	in.Offer(frame(0, 100, 100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for in.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	gen.advance()
	in.Offer(frame(1, 2, 4))
	in.Offer(frame(1, 4, 8))

	if got, want := receiveWithin(t, out).Data, []float32{3, 6}; !slices.Equal(got, want) {
		t.Errorf("averaged = %v, want %v", got, want)
	}
}

type resettableChannelizer struct {
	identityChannelizer
	resets atomic.Int32
}

func (c *resettableChannelizer) Reset() {
	c.resets.Add(1)
}

func TestChannelizationDropsStaleBlocks(t *testing.T) {
	gen := &generation{}
	ch := &resettableChannelizer{identityChannelizer: identityChannelizer{nch: 2}}
	in := NewQueue[Frame[[]complex64]]("raw", 4, discard)
	out := NewQueue[Frame[[]float32]]("spectra", 4, discard)
	stage := &Channelization{channelizer: ch, in: in, out: out, gen: gen, logger: discard}

	gen.advance()
	in.Offer(block(0, 9, 9))
	in.Offer(block(1, 1, 2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	got := receiveWithin(t, out)
	if want := []float32{4, 1}; !slices.Equal(got.Data, want) {
		t.Errorf("spectrum = %v, want %v", got.Data, want)
	}
	if got.Gen != 1 {
		t.Errorf("Gen = %d, want 1", got.Gen)
	}
	if n := ch.resets.Load(); n != 1 {
		t.Errorf("channelizer reset %d times, want 1", n)
	}
}

func TestSmootherWaitsForNewGenerationToReset(t *testing.T) {
	s := newTestSmoother(2, 2, 0.5, nil)
	s.gen = &generation{}

	s.Process(frame(0, 4, 4))
	s.RequestReset(ResetPolicy{History: true})

	// Still the old tuning: the reset stays pending.
	s.Process(frame(0, 4, 4))
	if got := s.display.Snapshot().History[0]; !slices.Equal(got, []float32{4, 4}) {
		t.Fatalf("History[0] = %v, reset applied too early", got)
	}

	s.gen.advance()
	s.Process(frame(0, 8, 8)) // stale
	s.Process(frame(1, 2, 2))

	snap := s.display.Snapshot()
	if !slices.Equal(snap.History[0], []float32{0, 0}) {
		t.Errorf("History[0] = %v, want cleared", snap.History[0])
	}
	if !slices.Equal(snap.History[1], []float32{2, 2}) {
		t.Errorf("History[1] = %v, want the new tuning's spectrum", snap.History[1])
	}
	if s.stale != 1 {
		t.Errorf("stale = %d, want 1", s.stale)
	}
}

func TestStagesDrainClosedQueue(t *testing.T) {
	in := NewQueue[Frame[[]float32]]("spectra", 8, discard)
	out := NewQueue[Frame[[]float32]]("averaged", 8, discard)
	stage := &Averaging{averager: NewAverager(1, 2), in: in, out: out, logger: discard}

	in.Offer(frame(0, 1, 1))
	in.Offer(frame(0, 2, 2))
	in.Close()

	if err := stage.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Len() != 2 {
		t.Errorf("forwarded %d spectra, want 2", out.Len())
	}

	receiveWithin(t, out)
	receiveWithin(t, out)
	if _, err := out.Receive(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Receive() error = %v, want ErrQueueClosed", err)
	}
}
