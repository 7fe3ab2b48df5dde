// Package sse serves the planet event stream as text/event-stream responses.
package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/planetpulse/internal/broadcast"
)

var heartbeat = []byte(": ping\n\n")

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

// Stream relays already framed chunks from sink to w and sends a comment
// heartbeat every interval so idle proxies keep the connection open. It
// returns nil when ctx ends or the sink is closed, and the write error when
// the client goes away. The caller deregisters the sink afterwards.
func Stream(ctx context.Context, w http.ResponseWriter, sink *broadcast.QueueSink, clock clockwork.Clock, interval time.Duration) error {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamingUnsupported, err)
	}

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sink.Done():
			return nil

		case chunk := <-sink.Queue():
			if err := write(w, rc, chunk); err != nil {
				return err
			}

		case <-ticker.Chan():
			if err := write(w, rc, heartbeat); err != nil {
				return err
			}
		}
	}
}

func write(w http.ResponseWriter, rc *http.ResponseController, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	return nil
}
