package display

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectral-accumulator/internal/pipeline"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

func publish(t *testing.T, d *pipeline.Display, w *pipeline.Waterfall, row []float32) {
	t.Helper()

	w.Push(row)
	if !d.TryPublish(row, row, w) {
		t.Fatal("TryPublish() = false on an idle display")
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + FeedPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return f
}

func TestServer_Feed(t *testing.T) {
	d := pipeline.NewDisplay(2, 4)
	d.SetTuning(sdr.Tuning{CenterFrequency: 100e6, SampleRate: 2e6})
	w := pipeline.NewWaterfall(2, 4)
	c := pipeline.NewCoalescer()

	publish(t, d, w, []float32{1, 2, 3, 4})

	s := NewServer(d, c)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	conn := dial(t, srv)

	first := readFrame(t, conn)
	if first.Seq != 1 {
		t.Errorf("initial frame Seq = %d, want 1", first.Seq)
	}
	if first.CenterFrequency != 100e6 || first.SampleRate != 2e6 {
		t.Errorf("initial frame tuning = %v/%v, want 100e6/2e6", first.CenterFrequency, first.SampleRate)
	}
	if first.Channels != 4 || first.Rows != 2 {
		t.Errorf("initial frame shape = %dx%d, want 4x2", first.Channels, first.Rows)
	}
	if !slices.Equal(first.Filtered, []float32{1, 2, 3, 4}) {
		t.Errorf("initial frame Filtered = %v", first.Filtered)
	}

	publish(t, d, w, []float32{5, 6, 7, 8})
	c.Notify()

	next := readFrame(t, conn)
	if next.Seq != 2 {
		t.Errorf("broadcast frame Seq = %d, want 2", next.Seq)
	}
	if !slices.Equal(next.History[0], []float32{1, 2, 3, 4}) || !slices.Equal(next.History[1], []float32{5, 6, 7, 8}) {
		t.Errorf("broadcast frame History = %v, want oldest row first", next.History)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestServer_WithoutHistory(t *testing.T) {
	d := pipeline.NewDisplay(3, 2)
	s := NewServer(d, pipeline.NewCoalescer(), WithHistory(false))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	f := readFrame(t, dial(t, srv))
	if f.History != nil {
		t.Errorf("History = %v, want omitted", f.History)
	}
	if f.Rows != 3 {
		t.Errorf("Rows = %d, want 3", f.Rows)
	}
}

func TestServer_Retune(t *testing.T) {
	got := make(chan float64, 1)
	s := NewServer(pipeline.NewDisplay(1, 2), pipeline.NewCoalescer(), WithRetune(func(fc float64) error {
		got <- fc
		return nil
	}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)

	if err := conn.WriteJSON(Command{Type: CommandRetune, CenterFrequency: 433.92e6}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	select {
	case fc := <-got:
		if fc != 433.92e6 {
			t.Errorf("retune frequency = %v, want 433.92e6", fc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retune callback not called")
	}
}

func TestServer_RetuneError(t *testing.T) {
	called := make(chan struct{})
	s := NewServer(pipeline.NewDisplay(1, 2), pipeline.NewCoalescer(), WithRetune(func(float64) error {
		close(called)
		return errors.New("not tunable")
	}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)

	if err := conn.WriteJSON(Command{Type: CommandRetune, CenterFrequency: 1}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	<-called

	// The connection survives a failed command.
	if err := conn.WriteJSON(Command{Type: "bogus"}); err != nil {
		t.Errorf("WriteJSON() after failed retune error = %v", err)
	}
}

func TestServer_Snapshot(t *testing.T) {
	d := pipeline.NewDisplay(2, 3)
	publish(t, d, pipeline.NewWaterfall(2, 3), []float32{1, 1, 1})

	s := NewServer(d, pipeline.NewCoalescer(), WithHistory(false))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + SnapshotPath)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var f Frame
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if f.Seq != 1 || len(f.History) != 2 {
		t.Errorf("snapshot = seq %d, %d rows; want seq 1 with full history", f.Seq, len(f.History))
	}
}

func TestServer_SlowClientDropsFrames(t *testing.T) {
	d := pipeline.NewDisplay(1, 1)
	s := NewServer(d, pipeline.NewCoalescer(), WithClientBuffer(1))

	c := &client{id: "slow", send: make(chan []byte, 1)}
	s.clients[c.id] = c

	s.broadcast()
	s.broadcast()
	s.broadcast()

	if len(c.send) != 1 {
		t.Errorf("queued frames = %d, want 1", len(c.send))
	}
	if c.dropped != 2 {
		t.Errorf("dropped = %d, want 2", c.dropped)
	}
	if s.Frames() != 3 || s.Skipped() != 0 {
		t.Errorf("Frames/Skipped = %d/%d, want 3/0", s.Frames(), s.Skipped())
	}
}

func TestAdvertisement_TXT(t *testing.T) {
	a := Advertisement{
		Name:     "bench",
		Port:     8080,
		Channels: 1024,
		Tuning:   sdr.Tuning{CenterFrequency: 1420.4e6, SampleRate: 2.4e6},
	}

	want := []string{"path=/feed", "snapshot=/snapshot", "nch=1024", "fc=1420400000", "fs=2400000"}
	if got := a.txt(); !slices.Equal(got, want) {
		t.Errorf("txt() = %v, want %v", got, want)
	}

	if got := (Advertisement{}).txt(); len(got) != 2 {
		t.Errorf("txt() of empty advertisement = %v, want paths only", got)
	}
}
