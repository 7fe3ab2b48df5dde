// Package websocket serves the planet event stream over WebSocket connections.
package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planetpulse/internal/broadcast"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// Sink is a registry sink backed by one WebSocket connection. Send only
// enqueues; Serve owns every write on the connection.
type Sink struct {
	*broadcast.QueueSink
	conn  *websocket.Conn
	clock clockwork.Clock
}

func NewSink(conn *websocket.Conn, clock clockwork.Clock, bufferSize int) *Sink {
	return &Sink{
		QueueSink: broadcast.NewQueueSink(bufferSize),
		conn:      conn,
		clock:     clock,
	}
}

// Serve writes queued chunks as text frames and pings the peer until the sink
// is closed, the peer disconnects or ctx ends. The connection is closed on return.
func (s *Sink) Serve(ctx context.Context) error {
	defer func() { _ = s.conn.Close() }()

	s.configurePongHandler()
	go s.readLoop()

	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case chunk := <-s.Queue():
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.TextMessage, chunk); err != nil {
				s.Close()
				return err
			}

		case <-ticker.Chan():
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return err
			}

		case <-s.Done():
			s.writeClose("stream closed")
			return nil

		case <-ctx.Done():
			s.Close()
			s.writeClose("server shutting down")
			return nil
		}
	}
}

// readLoop drains control frames so pong and close handlers run. Clients are
// not expected to send data.
func (s *Sink) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.Close()
			return
		}
	}
}

func (s *Sink) writeClose(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	s.updateWriteDeadline()
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
}

func (s *Sink) configurePongHandler() {
	s.updateReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.updateReadDeadline()
		return nil
	})
}

func (s *Sink) updateWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
}

func (s *Sink) updateReadDeadline() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
}
