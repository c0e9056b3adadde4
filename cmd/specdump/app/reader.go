package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/filterbank"
	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
	"github.com/roman-kulish/spectral-accumulator/internal/sink"
	"github.com/roman-kulish/spectral-accumulator/internal/storage"
)

// pollInterval bounds how long a UDP read blocks before ctx is re-checked.
const pollInterval = 250 * time.Millisecond

// spectrumReader yields spectra until io.EOF.
type spectrumReader interface {
	Next(ctx context.Context) ([]float32, error)
	Channels() int
	Close() error
}

type udpReader struct {
	conn net.PacketConn
	nch  int
	buf  []byte
}

func listenUDP(addr string, nch int) (*udpReader, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &udpReader{conn: conn, nch: nch, buf: make([]byte, sink.MaxDatagram)}, nil
}

func (r *udpReader) Next(ctx context.Context) ([]float32, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, _, err := r.conn.ReadFrom(r.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return nil, err
		}

		if n != r.nch*4 {
			return nil, fmt.Errorf("datagram of %d bytes, want %d for %d channels", n, r.nch*4, r.nch)
		}

		s := make([]float32, r.nch)
		if err = rawio.DecodeFloat32(r.buf[:n], s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (r *udpReader) Channels() int { return r.nch }
func (r *udpReader) Close() error  { return r.conn.Close() }

type fileReader struct {
	f      *os.File
	r      io.Reader
	header *filterbank.Header
}

func openFile(path string) (_ *fileReader, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	header, body, err := filterbank.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err = header.Validate(); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	if header.NBits() != 32 {
		return nil, fmt.Errorf("unsupported sample width: %d bits", header.NBits())
	}
	if header.NChans() <= 0 {
		return nil, errors.New("header has no channels")
	}

	return &fileReader{f: f, r: body, header: header}, nil
}

func (r *fileReader) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := make([]float32, r.header.NChans()*r.header.NIFs())
	if err := rawio.Read(r.r, s); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return s, nil
}

func (r *fileReader) Channels() int { return r.header.NChans() }
func (r *fileReader) Close() error  { return r.f.Close() }

type dbReader struct {
	store *storage.SqliteStore
	iter  *storage.SpectrumReader
}

func openDB(ctx context.Context, config *Config) (_ *dbReader, err error) {
	if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	var opts []storage.ReaderOption
	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))
	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(config.MinTimestamp.UTC()))
	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(config.MaxTimestamp.UTC()))
	}

	iter, err := store.ReadSpectra(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}

	return &dbReader{store: store, iter: iter}, nil
}

func (r *dbReader) Next(ctx context.Context) ([]float32, error) {
	if !r.iter.Next(ctx) {
		if err := r.iter.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return r.iter.Current().Power, nil
}

func (r *dbReader) Channels() int { return r.iter.Session().Channels }

func (r *dbReader) Close() error {
	return errors.Join(r.iter.Close(), r.store.Close())
}
