// Package report streams motion status to external clients over
// websockets. It is a collaborator surface: it reads snapshots the
// driver publishes and owns no planner state.
package report

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lllars/g2/pkg/log"
	"github.com/lllars/g2/pkg/pool"
)

// StatusProvider supplies the current motion snapshot. Fill populates
// the given map; the server pools and recycles the maps.
type StatusProvider interface {
	Fill(status map[string]any)
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8800".
	Addr string
	// Interval between pushed snapshots.
	Interval time.Duration
	// Provider supplies snapshots.
	Provider StatusProvider
}

// Server serves /status for one-shot queries and /stream for pushed
// snapshots.
type Server struct {
	provider StatusProvider
	interval time.Duration
	logger   *log.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientMu   sync.RWMutex
	clients    map[int64]*client
	nextID     int64

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a report server.
func New(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Server{
		provider: cfg.Provider,
		interval: cfg.Interval,
		logger:   log.GetLogger("report"),
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[int64]*client),
		done:    make(chan struct{}),
	}
}

// Start begins serving and broadcasting.
func (s *Server) Start() error {
	if s.running.Swap(true) {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/stream", s.handleStream)
	s.httpServer.Handler = mux

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("report server stopped")
		}
	}()
	go s.broadcastLoop()

	s.logger.WithField("addr", s.httpServer.Addr).Info("report server listening")
	return nil
}

// Stop shuts the server down and disconnects all clients.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	close(s.done)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*client)
	s.clientMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) snapshot() map[string]any {
	status := pool.GetStatusMap()
	if s.provider != nil {
		s.provider.Fill(status)
	}
	return status
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.snapshot()
	defer pool.PutStatusMap(status)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.WithError(err).Warn("status encode failed")
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := s.addClient(conn)
	go c.readPump()
	go c.writePump()
}

func (s *Server) addClient(conn *websocket.Conn) *client {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	s.nextID++
	c := &client{
		id:     s.nextID,
		conn:   conn,
		server: s,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	s.clients[c.id] = c
	return c
}

func (s *Server) removeClient(c *client) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	delete(s.clients, c.id)
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.broadcast()
		case <-s.done:
			return
		}
	}
}

func (s *Server) broadcast() {
	s.clientMu.RLock()
	n := len(s.clients)
	s.clientMu.RUnlock()
	if n == 0 {
		return
	}

	status := s.snapshot()
	payload, err := json.Marshal(status)
	pool.PutStatusMap(status)
	if err != nil {
		s.logger.WithError(err).Warn("snapshot encode failed")
		return
	}

	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.send(payload)
	}
}

// client is one websocket subscriber.
type client struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan []byte
	done   chan struct{}
	closeOnce sync.Once
}

func (c *client) send(payload []byte) {
	select {
	case c.sendCh <- payload:
	case <-c.done:
	default:
		// Slow consumer; drop the frame rather than stall the others.
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()
	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case payload := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
