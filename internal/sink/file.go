package sink

import (
	"fmt"
	"os"
	"sync"

	"github.com/roman-kulish/spectral-accumulator/internal/filterbank"
	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

// FileSink appends spectra to a file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFile opens path for appending, creating it if needed. When header is
// not nil and the file is empty, the header is written first so the file
// is a valid filterbank file; an existing file is continued as is.
func OpenFile(path string, header *filterbank.Header) (_ *FileSink, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	if header != nil {
		stat, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat output file: %w", err)
		}
		if stat.Size() == 0 {
			if _, err = header.WriteTo(f); err != nil {
				return nil, fmt.Errorf("writing header: %w", err)
			}
		}
	}

	return &FileSink{file: f}, nil
}

func (s *FileSink) WriteSpectrum(spectrum []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return os.ErrClosed
	}
	return rawio.WriteFloat32(s.file, spectrum)
}

// Name returns the file path.
func (s *FileSink) Name() string {
	return s.file.Name()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
