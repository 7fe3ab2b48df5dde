package httpserver

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/planetpulse/internal/adapter/sse"
	wsstream "github.com/pscheid92/planetpulse/internal/adapter/websocket"
	"github.com/pscheid92/planetpulse/internal/broadcast"
	apperrors "github.com/pscheid92/planetpulse/internal/platform/errors"
)

func (s *Server) registerEventRoutes() {
	s.echo.GET("/events", s.handleEvents)
	s.echo.GET("/events/ws", s.handleEventsWebSocket)
}

// handleEvents streams "Planet created" events as server-sent events until
// the client disconnects or the server shuts down.
func (s *Server) handleEvents(c echo.Context) error {
	ip := c.RealIP()
	if err := s.acquireStreamSlot(ip); err != nil {
		return err
	}
	defer s.limits.Release(ip)

	ctx := c.Request().Context()
	sink := broadcast.NewQueueSink(s.config.SinkBufferSize)
	id := s.clients.Register(sink)
	defer s.clients.Deregister(id)

	slog.InfoContext(ctx, "Event stream opened", "client_id", id.String(), "transport", "sse", "ip", ip)

	err := sse.Stream(ctx, c.Response(), sink, s.clock, s.config.SSEHeartbeatInterval)
	if errors.Is(err, sse.ErrStreamingUnsupported) {
		return apperrors.InternalError("streaming unsupported", err)
	}

	slog.InfoContext(ctx, "Event stream closed", "client_id", id.String(), "transport", "sse", "error", err)
	return nil
}

// handleEventsWebSocket streams the same events as WebSocket text frames.
func (s *Server) handleEventsWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if err := s.acquireStreamSlot(ip); err != nil {
		return err
	}
	defer s.limits.Release(ip)

	ctx := c.Request().Context()
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.DebugContext(ctx, "WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	sink := wsstream.NewSink(conn, s.clock, s.config.SinkBufferSize)
	id := s.clients.Register(sink)
	defer s.clients.Deregister(id)

	slog.InfoContext(ctx, "Event stream opened", "client_id", id.String(), "transport", "websocket", "ip", ip)
	err = sink.Serve(ctx)
	slog.InfoContext(ctx, "Event stream closed", "client_id", id.String(), "transport", "websocket", "error", err)
	return nil
}

func (s *Server) acquireStreamSlot(ip string) error {
	ok, reason := s.limits.Acquire(ip)
	if ok {
		return nil
	}

	if s.streamMetrics != nil {
		s.streamMetrics.Rejected.WithLabelValues(string(reason)).Inc()
	}
	if reason == broadcast.LimitReasonPerIP {
		return apperrors.RateLimitedError("too many stream connections from this address").WithField("reason", string(reason))
	}
	return apperrors.UnavailableError("stream capacity exhausted").WithField("reason", string(reason))
}
