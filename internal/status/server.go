// Package status serves a read-only view of a running session: a JSON
// snapshot over HTTP and a websocket feed of bus events.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jordanella.com/rmac/internal/database"
	"jordanella.com/rmac/internal/events"
	"jordanella.com/rmac/internal/logging"
	"jordanella.com/rmac/internal/session"
)

const (
	writeWait      = 5 * time.Second
	clientQueueLen = 64
	recentSessions = 20
)

// Deps are what the server reports on. DB is optional; without it
// /sessions answers 404.
type Deps struct {
	Status *session.Status
	Flags  *session.Flags
	Bus    events.EventBus
	DB     *database.DB
	Logger *logging.Logger
}

// Server fans bus events out to websocket clients.
type Server struct {
	deps     Deps
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	subs    []events.SubscriptionID
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewServer subscribes to every bus event. Close releases the subscription
// and disconnects clients.
func NewServer(deps Deps) *Server {
	if deps.Status == nil {
		deps.Status = &session.Status{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	s := &Server{
		deps:    deps,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if deps.Bus != nil {
		s.subs = deps.Bus.SubscribeAll(s.broadcast)
	}
	return s
}

// Handler routes /status, /sessions and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.deps.Logger.InfoWithContext("Status server listening", logging.Fields{"addr": addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// ClientCount is the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close unsubscribes from the bus and drops every client.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	if s.deps.Bus != nil {
		for _, id := range subs {
			s.deps.Bus.Unsubscribe(id)
		}
	}
	for _, c := range clients {
		c.close()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Status.View(s.deps.Flags))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB == nil {
		http.NotFound(w, r)
		return
	}
	sessions, err := s.deps.DB.RecentSessions(recentSessions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, ss := range sessions {
		out = append(out, viewOf(ss))
	}
	writeJSON(w, out)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Logger.Warn("status: websocket upgrade failed: " + err.Error())
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueueLen)}

	// The first message is the current snapshot so a late client starts
	// from a consistent view.
	hello, err := json.Marshal(message{Type: "status", Status: ptr(s.deps.Status.View(s.deps.Flags))})
	if err == nil {
		c.send <- hello
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client input and notices disconnects.
func (s *Server) readPump(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	// Closing the socket also unblocks readPump, which drops the client.
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// broadcast runs on the bus goroutine; a client that cannot keep up is
// dropped instead of stalling the bus.
func (s *Server) broadcast(e events.Event) {
	payload, err := json.Marshal(message{Type: "event", Event: &e})
	if err != nil {
		s.deps.Logger.Warn("status: cannot encode event: " + err.Error())
		return
	}

	s.mu.Lock()
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range slow {
		c.close()
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func ptr[T any](v T) *T { return &v }
