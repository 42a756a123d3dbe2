// Package relay accepts MIDI over WebSocket, so a browser with Web MIDI
// can play the drives through the host bridge.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"floppier/host/bridge"
)

const (
	maxMessageSize = 4096
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Server relays binary WebSocket messages of raw MIDI bytes to a bridge.
// When the last client goes away every drive is silenced.
type Server struct {
	bridge   *bridge.Bridge
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu       sync.Mutex
	clients  int
	messages uint64
}

// Status is served as JSON on /status
type Status struct {
	Clients  int
	Messages uint64
	Dropped  uint64
}

// New creates a relay for b
func New(b *bridge.Bridge, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bridge: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // any origin
			},
		},
		log: logger,
	}
}

// Handler returns the relay's HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/midi", s.handleMIDI)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// ListenAndServe serves on addr until ctx ends
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.log.Info("relay: listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("relay: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay: shutdown: %w", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay: %w", err)
		}
		return ctx.Err()
	}
}

// Status returns a snapshot of the relay counters
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Clients: s.clients, Messages: s.messages, Dropped: s.bridge.Dropped()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Status())
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("relay: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.join(r.RemoteAddr)
	defer s.leave(r.RemoteAddr)

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	s.readLoop(conn)
	conn.Close()
}

func (s *Server) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	var parser bridge.Parser
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("relay: read error", "err", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			s.log.Debug("relay: ignoring non-binary message", "type", kind)
			continue
		}
		for _, c := range data {
			msg, ok := parser.Feed(c)
			if !ok {
				continue
			}
			s.count()
			if err := s.bridge.Handle(bridge.LiveTrack, msg); err != nil {
				s.log.Error("relay: bridge failed", "err", err)
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "device unavailable"),
					time.Now().Add(writeTimeout))
				return
			}
		}
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) count() {
	s.mu.Lock()
	s.messages++
	s.mu.Unlock()
}

func (s *Server) join(remote string) {
	s.mu.Lock()
	s.clients++
	n := s.clients
	s.mu.Unlock()
	s.log.Info("relay: client connected", "remote", remote, "clients", n)
}

func (s *Server) leave(remote string) {
	s.mu.Lock()
	s.clients--
	n := s.clients
	s.mu.Unlock()
	s.log.Info("relay: client disconnected", "remote", remote, "clients", n)
	if n == 0 {
		if err := s.bridge.Release(); err != nil {
			s.log.Error("relay: release failed", "err", err)
		}
	}
}
