package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/storage"
)

const (
	DefaultBatchSize    = 32
	DefaultStoreTimeout = 10 * time.Second
)

// WithBatchSize sets how many spectra are buffered per transaction.
func WithBatchSize(n int) func(s *StoreSink) {
	return func(s *StoreSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock replaces time.Now for timestamping spectra.
func WithClock(now func() time.Time) func(s *StoreSink) {
	return func(s *StoreSink) {
		s.now = now
	}
}

// StoreSink saves spectra to a session store in batches.
type StoreSink struct {
	store     storage.Store
	sessionID int64
	batchSize int
	timeout   time.Duration
	now       func() time.Time

	mu         sync.Mutex
	timestamps []time.Time
	pending    [][]float32
}

// NewStoreSink writes into an existing session. The store is not closed
// by the sink.
func NewStoreSink(store storage.Store, sessionID int64, options ...func(s *StoreSink)) *StoreSink {
	s := StoreSink{
		store:     store,
		sessionID: sessionID,
		batchSize: DefaultBatchSize,
		timeout:   DefaultStoreTimeout,
		now:       time.Now,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// WriteSpectrum buffers the spectrum and flushes a full batch.
func (s *StoreSink) WriteSpectrum(spectrum []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timestamps = append(s.timestamps, s.now())
	s.pending = append(s.pending, spectrum)

	if len(s.pending) < s.batchSize {
		return nil
	}
	return s.flush()
}

// Flush writes buffered spectra.
func (s *StoreSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flush()
}

// Close flushes what is buffered.
func (s *StoreSink) Close() error {
	return s.Flush()
}

func (s *StoreSink) flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.store.StoreSpectra(ctx, s.sessionID, s.timestamps, s.pending)

	// A failed batch is dropped rather than retried forever.
	n := len(s.pending)
	clear(s.pending)
	s.timestamps = s.timestamps[:0]
	s.pending = s.pending[:0]

	if err != nil {
		return fmt.Errorf("storing %d spectra: %w", n, err)
	}
	return nil
}
