package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server exposes the latest reading over HTTP and streams new ones to
// websocket clients. It is also a Sink, so the poller feeds it directly.
type Server struct {
	poller   *Poller
	upgrader websocket.Upgrader

	mx      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

var _ Sink = &Server{}

func NewServer(poller *Poller) *Server {
	return &Server{
		poller: poller,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler builds the gin router:
//
//	GET /temperature  latest reading (404 until the first sample)
//	GET /ws           reading stream
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/temperature", s.handleLatest)
	r.GET("/ws", s.handleWebSocket)
	return r
}

func (s *Server) handleLatest(c *gin.Context) {
	reading, ok := s.poller.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading yet"})
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	s.mx.Lock()
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.mx.Unlock()
	slog.Debug("websocket client connected", "clients", count)

	if reading, ok := s.poller.Last(); ok {
		s.send(conn, reading)
	}
	// drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(conn)
}

// Record broadcasts a reading to every connected client.
func (s *Server) Record(ctx context.Context, r Reading) error {
	s.mx.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mx.Unlock()
	for _, conn := range conns {
		s.send(conn, r)
	}
	return nil
}

func (s *Server) send(conn *websocket.Conn, r Reading) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.clients[conn]; !ok {
		return
	}
	if err := conn.WriteJSON(r); err != nil {
		slog.Debug("websocket write failed", "error", err)
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.clients[conn]; ok {
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
