// Package display serves the published spectrum state to remote viewers
// over WebSocket and advertises the feed with mDNS.
package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectral-accumulator/internal/pipeline"
)

const (
	FeedPath     = "/feed"
	SnapshotPath = "/snapshot"

	DefaultClientBuffer = 4

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxCommandSize = 4096
)

// RetuneFunc is called when a client asks for a new centre frequency.
type RetuneFunc func(centerFrequency float64) error

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "display"))
	}
}

// WithRetune enables the retune command.
func WithRetune(fn RetuneFunc) func(s *Server) {
	return func(s *Server) {
		s.retune = fn
	}
}

// WithClientBuffer sets how many frames may wait for a slow client before
// new frames are dropped for it.
func WithClientBuffer(n int) func(s *Server) {
	return func(s *Server) {
		if n > 0 {
			s.clientBuffer = n
		}
	}
}

// WithHistory includes the waterfall in every frame.
func WithHistory(enabled bool) func(s *Server) {
	return func(s *Server) {
		s.history = enabled
	}
}

// Server pushes a frame to every connected client each time the pipeline
// requests a repaint.
type Server struct {
	display   *pipeline.Display
	coalescer *pipeline.Coalescer
	upgrader  websocket.Upgrader

	retune       RetuneFunc
	clientBuffer int
	history      bool

	mu      sync.RWMutex
	clients map[string]*client

	frames  atomic.Uint64
	skipped atomic.Uint64

	logger *slog.Logger
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	dropped uint64
}

// NewServer creates a feed for display, repainting on coalescer.
func NewServer(display *pipeline.Display, coalescer *pipeline.Coalescer, options ...func(s *Server)) *Server {
	s := Server{
		display:   display,
		coalescer: coalescer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin: func(r *http.Request) bool {
				return true // the feed is read-only data for a trusted network
			},
		},
		clientBuffer: DefaultClientBuffer,
		history:      true,
		clients:      make(map[string]*client),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Handler returns the HTTP routes of the feed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FeedPath, s.handleFeed)
	mux.HandleFunc(SnapshotPath, s.handleSnapshot)
	return mux
}

// Run broadcasts a frame per repaint request until ctx is done, then
// disconnects every client.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeClients()

	err := s.coalescer.Run(ctx, s.broadcast)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ListenAndServe serves the feed on addr and runs the broadcaster until
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("display feed listening", slog.String("addr", ln.Addr().String()))

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	go func() {
		errChan <- s.Run(ctx)
	}()

	select {
	case err := <-errChan:
		_ = srv.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.clients)
}

// Frames returns the number of frames broadcast.
func (s *Server) Frames() uint64 {
	return s.frames.Load()
}

// Skipped returns the number of repaints skipped because the display was
// being published to.
func (s *Server) Skipped() uint64 {
	return s.skipped.Load()
}

func (s *Server) broadcast() {
	snap, ok := s.display.TrySnapshot()
	if !ok {
		// The writer is publishing; the next repaint brings fresh data.
		s.skipped.Add(1)
		return
	}

	msg, err := json.Marshal(newFrame(snap, s.history))
	if err != nil {
		s.logger.Error(fmt.Sprintf("encoding frame: %s", err))
		return
	}
	s.frames.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients {
		s.enqueue(c, msg)
	}
}

// enqueue never blocks; a client that can't keep up misses frames.
func (s *Server) enqueue(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.dropped++
		s.logger.Warn("client too slow, frame dropped",
			slog.String("client", c.id),
			slog.Uint64("dropped", c.dropped))
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newFrame(s.display.Snapshot(), true)); err != nil {
		s.logger.Error(fmt.Sprintf("writing snapshot: %s", err))
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("websocket upgrade failed: %s", err))
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, s.clientBuffer),
	}

	// New clients start from the current state instead of a blank screen.
	if msg, err := json.Marshal(newFrame(s.display.Snapshot(), s.history)); err == nil {
		c.send <- msg
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.logger.Info("client connected", slog.String("client", c.id), slog.String("remote", r.RemoteAddr))

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.id]; !ok {
		return
	}
	delete(s.clients, c.id)
	close(c.send)

	s.logger.Info("client disconnected", slog.String("client", c.id))
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.removeClient(c)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn(fmt.Sprintf("client read failed: %s", err), slog.String("client", c.id))
			}
			return
		}

		s.handleCommand(c, msg)
	}
}

func (s *Server) handleCommand(c *client, msg []byte) {
	var cmd Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		s.logger.Warn(fmt.Sprintf("invalid command: %s", err), slog.String("client", c.id))
		return
	}

	switch cmd.Type {
	case CommandRetune:
		if s.retune == nil {
			s.logger.Warn("retune not supported", slog.String("client", c.id))
			return
		}
		if err := s.retune(cmd.CenterFrequency); err != nil {
			s.logger.Error(fmt.Sprintf("retune failed: %s", err), slog.String("client", c.id))
		}

	default:
		s.logger.Warn("unknown command", slog.String("client", c.id), slog.String("type", cmd.Type))
	}
}
