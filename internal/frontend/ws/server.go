// Package ws is the client-facing transport: one WebSocket per player, framed
// with the game server's codec, plus a small health endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/raid/internal/config"
	"github.com/cory-johannsen/raid/internal/game/session"
	"github.com/cory-johannsen/raid/internal/gameserver"
)

const (
	// PathSocket is the WebSocket upgrade endpoint.
	PathSocket = "/ws"
	// PathHealth reports liveness and load.
	PathHealth = "/healthz"
)

var errOutboxClosed = errors.New("outbox closed")

// Health is the body served on PathHealth.
type Health struct {
	Status      string `json:"status"`
	Connections int64  `json:"connections"`
	Rooms       int    `json:"rooms"`
	Players     int    `json:"players"`
}

// Server accepts WebSocket connections and binds each to a gameserver.Client.
type Server struct {
	cfg        config.WebSocketConfig
	production bool
	manager    *gameserver.Manager
	logger     *zap.Logger

	http     *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
	stopped  bool
	conns    atomic.Int64
}

// NewServer creates a WebSocket server.
//
// Precondition: manager and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe or
// mounted through Handler.
func NewServer(cfg config.WebSocketConfig, production bool, manager *gameserver.Manager, logger *zap.Logger) *Server {
	if manager == nil || logger == nil {
		panic("ws.NewServer: manager and logger must be non-nil")
	}
	if cfg.OutboxSize < 1 {
		cfg.OutboxSize = session.DefaultOutboxSize
	}
	s := &Server{
		cfg:        cfg,
		production: production,
		manager:    manager,
		logger:     logger,
		quit:       make(chan struct{}),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathSocket, s.serveSocket)
	mux.HandleFunc(PathHealth, s.serveHealth)
	return mux
}

// ListenAndServe binds the configured address and serves until Stop is called.
//
// Precondition: The server must not already be running.
// Postcondition: The listener is closed when this method returns.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("encoding", s.manager.Codec().Name()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// Stop closes the listener, cancels every connection and waits for them to
// finish or for ctx to expire.
//
// Postcondition: No new connections are accepted.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.running = false
	close(s.quit)
	s.mu.Unlock()

	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	s.logger.Info("websocket server stopped")
	return err
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Connections returns the number of open WebSocket connections.
func (s *Server) Connections() int64 {
	return s.conns.Load()
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Health{
		Status:      "ok",
		Connections: s.Connections(),
		Rooms:       s.manager.RoomCount(),
		Players:     s.manager.PlayerCount(),
	})
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: !s.production,
		OriginPatterns:     s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	if s.cfg.ReadLimit > 0 {
		c.SetReadLimit(s.cfg.ReadLimit)
	}

	s.conns.Add(1)
	defer s.conns.Add(-1)

	id := uuid.NewString()
	logger := s.logger.With(
		zap.String("conn", id),
		zap.String("remote_addr", r.RemoteAddr),
	)
	start := time.Now()
	logger.Info("client connected")

	err = s.handle(r.Context(), c, id, logger)
	switch status := websocket.CloseStatus(err); {
	case err == nil, status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		logger.Info("session ended cleanly", zap.Duration("duration", time.Since(start)))
		c.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
		logger.Info("session ended by shutdown", zap.Duration("duration", time.Since(start)))
		c.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		logger.Debug("session ended",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		c.Close(websocket.StatusInternalError, "")
	}
}

// handle runs the read and write loops of one connection until either fails
// or the server stops.
func (s *Server) handle(parent context.Context, c *websocket.Conn, id string, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	out := session.NewOutbox(id, s.cfg.OutboxSize)
	defer out.Close()
	client := s.manager.Connect(out)
	defer client.Disconnect()

	msgType := websocket.MessageText
	if s.manager.Codec().Binary() {
		msgType = websocket.MessageBinary
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.readLoop(gctx, c, client)
	})
	g.Go(func() error {
		return s.writeLoop(gctx, c, out, msgType)
	})
	err := g.Wait()
	if errors.Is(err, errOutboxClosed) {
		logger.Debug("outbox closed")
	}
	return err
}

func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, client *gameserver.Client) error {
	for {
		_, data, err := s.read(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		client.Handle(data)
	}
}

// read waits for the next message, giving up after the configured idle timeout.
func (s *Server) read(ctx context.Context, c *websocket.Conn) (websocket.MessageType, []byte, error) {
	if s.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
	}
	return c.Read(ctx)
}

func (s *Server) writeLoop(ctx context.Context, c *websocket.Conn, out *session.Outbox, msgType websocket.MessageType) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-out.Frames():
			if !ok {
				return errOutboxClosed
			}
			if err := s.write(ctx, c, msgType, frame); err != nil {
				return err
			}
		}
	}
}

func (s *Server) write(ctx context.Context, c *websocket.Conn, msgType websocket.MessageType, frame []byte) error {
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}
	if err := c.Write(ctx, msgType, frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
