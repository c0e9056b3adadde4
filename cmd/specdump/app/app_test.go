package app

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/filterbank"
	"github.com/roman-kulish/spectral-accumulator/internal/sink"
	"github.com/roman-kulish/spectral-accumulator/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSummarize(t *testing.T) {
	st := Summarize([]float32{1, 100, 0, 10})

	if st.Peak != 1 {
		t.Errorf("Peak = %d, want 1", st.Peak)
	}
	if math.Abs(st.Max-20) > 1e-9 || math.Abs(st.Min) > 1e-9 {
		t.Errorf("Min/Max = %v/%v, want 0/20", st.Min, st.Max)
	}
	if want := 10 * math.Log10(37); math.Abs(st.Mean-want) > 1e-9 {
		t.Errorf("Mean = %v, want %v", st.Mean, want)
	}

	if st := Summarize([]float32{0, -1}); !math.IsNaN(st.Mean) || st.Peak != -1 {
		t.Errorf("Summarize() of empty spectrum = %+v", st)
	}
}

func TestPowerHistogram(t *testing.T) {
	h := NewPowerHistogram()
	if _, ok := h.Bounds(); ok {
		t.Error("Bounds() ok on empty histogram")
	}

	// 100 samples spread over 0..99 dB.
	s := make([]float32, 100)
	for i := range s {
		s[i] = float32(math.Pow(10, (float64(i)+0.5)/10))
	}
	h.Add(s)
	h.Add([]float32{0, -3})

	if h.Count() != 100 {
		t.Errorf("Count() = %d, want 100", h.Count())
	}

	b, ok := h.Bounds()
	if !ok {
		t.Fatal("Bounds() not ok")
	}
	if b.P5 != 4 || b.P95 != 95 {
		t.Errorf("P5/P95 = %v/%v, want 4/95", b.P5, b.P95)
	}
	if math.Abs(b.Mean-49.5) > 1e-9 {
		t.Errorf("Mean = %v, want 49.5", b.Mean)
	}
}

func TestNewConfigFromArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"udp", []string{"-udp", ":8888", "-n", "1024"}, false},
		{"file", []string{"-file", "out.fil"}, false},
		{"db with range", []string{"-db", "s.sqlite", "-s", "2", "-min-time", "2024-01-02 03:04:05", "-max-time", "2024-01-02 04:00:00"}, false},
		{"no source", []string{"-n", "8"}, true},
		{"two sources", []string{"-udp", ":8888", "-n", "8", "-file", "out.fil"}, true},
		{"udp without channels", []string{"-udp", ":8888"}, true},
		{"bad time", []string{"-db", "s.sqlite", "-min-time", "yesterday"}, true},
		{"bad interval", []string{"-file", "out.fil", "-every", "0"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("specdump", flag.ContinueOnError)
			fs.SetOutput(io.Discard)

			c, err := newConfigFromArgs(fs, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newConfigFromArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.name == "db with range" && (c.MinTimestamp == nil || c.MaxTimestamp == nil || c.SessionID != 2) {
				t.Errorf("config = %+v", c)
			}
		})
	}
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.fil")

	fs, err := sink.OpenFile(path, filterbank.NewHeader(100, 4, 0.25, 51544, 1e-3))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	for _, s := range [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}} {
		if err = fs.WriteSpectrum(s); err != nil {
			t.Fatalf("WriteSpectrum() error = %v", err)
		}
	}
	if err = fs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, err := openFile(path)
	if err != nil {
		t.Fatalf("openFile() error = %v", err)
	}
	defer r.Close()

	if r.Channels() != 4 {
		t.Errorf("Channels() = %d, want 4", r.Channels())
	}

	ctx := context.Background()
	for _, want := range [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}} {
		got, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !slices.Equal(got, want) {
			t.Errorf("Next() = %v, want %v", got, want)
		}
	}
	if _, err = r.Next(ctx); err != io.EOF {
		t.Errorf("Next() at end error = %v, want io.EOF", err)
	}

	if err = Run(ctx, &Config{FilePath: path, Every: 1}, discard); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestUDPReader(t *testing.T) {
	r, err := listenUDP("127.0.0.1:0", 3)
	if err != nil {
		t.Fatalf("listenUDP() error = %v", err)
	}
	defer r.Close()

	us, err := sink.DialUDP(r.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	defer us.Close()

	if err = us.WriteSpectrum([]float32{1, 2, 3}); err != nil {
		t.Fatalf("WriteSpectrum() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !slices.Equal(got, []float32{1, 2, 3}) {
		t.Errorf("Next() = %v", got)
	}

	if err = us.WriteSpectrum([]float32{1, 2}); err != nil {
		t.Fatalf("WriteSpectrum() error = %v", err)
	}
	if _, err = r.Next(ctx); err == nil {
		t.Error("Next() of short datagram error = nil, want error")
	}
}

func TestDBReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectra.sqlite")
	ctx := context.Background()

	store := storage.NewSqliteStore(path)
	id, err := store.CreateSession(ctx, storage.NewSession{DeviceType: "tone", DeviceID: "bench", Channels: 2, Average: 1})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err = store.StoreSpectra(ctx, id,
		[]time.Time{t0, t0.Add(time.Second), t0.Add(2 * time.Second)},
		[][]float32{{1, 1}, {2, 2}, {3, 3}})
	if err != nil {
		t.Fatalf("StoreSpectra() error = %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	start := t0.Add(time.Second)
	r, err := openDB(ctx, &Config{DBPath: path, SessionID: id, MinTimestamp: &start})
	if err != nil {
		t.Fatalf("openDB() error = %v", err)
	}
	defer r.Close()

	if r.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", r.Channels())
	}

	var got [][]float32
	for {
		s, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, s)
	}
	if len(got) != 2 || got[0][0] != 2 || got[1][0] != 3 {
		t.Errorf("spectra = %v, want the last two", got)
	}

	if _, err = openDB(ctx, &Config{DBPath: filepath.Join(t.TempDir(), "missing.sqlite"), SessionID: 1}); err == nil {
		t.Error("openDB() of missing file error = nil, want error")
	}
}
