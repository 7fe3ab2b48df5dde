package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/broadcast"
	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/pscheid92/planetpulse/internal/platform/correlation"
)

// ErrStreamEnded is returned by Run when the stream closed without reporting an error.
var ErrStreamEnded = errors.New("notification stream ended")

type Broadcaster interface {
	Broadcast(chunk []byte) broadcast.BroadcastResult
}

// Relay is the fan-out loop: one notification in, one broadcast pass out.
type Relay struct {
	stream  domain.NotificationStream
	clients Broadcaster
	metrics *metrics.RelayMetrics
	running atomic.Bool
}

// NewRelay wires an open stream to the client registry. m may be nil.
func NewRelay(stream domain.NotificationStream, clients Broadcaster, m *metrics.RelayMetrics) *Relay {
	return &Relay{stream: stream, clients: clients, metrics: m}
}

// Run consumes the stream until it ends or ctx is cancelled. Each broadcast
// completes before the next notification is read, so every client sees
// notifications in bus order. Cancellation returns nil; a stream failure is
// returned as is and the relay does not resubscribe.
func (r *Relay) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	notifications := r.stream.Notifications()
	for {
		select {
		case <-ctx.Done():
			return nil

		case n, ok := <-notifications:
			if !ok {
				return r.streamEnded(ctx)
			}
			r.relay(ctx, n)
		}
	}
}

// Running reports whether Run is consuming the stream.
func (r *Relay) Running() bool {
	return r.running.Load()
}

func (r *Relay) relay(ctx context.Context, n domain.Notification) {
	ctx, _ = correlation.Ensure(ctx)
	if r.metrics != nil {
		r.metrics.NotificationsReceived.Inc()
	}

	start := time.Now()
	result := r.clients.Broadcast(broadcast.FramePlanetCreated(n.Payload))
	if r.metrics != nil {
		r.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}

	slog.DebugContext(ctx, "Notification relayed",
		"channel", n.Channel,
		"bytes", len(n.Payload),
		"delivered", result.Delivered,
		"failed", result.Failed,
	)
}

func (r *Relay) streamEnded(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := r.stream.Err(); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	return ErrStreamEnded
}

func (r *Relay) setRunning(running bool) {
	if r.metrics != nil {
		if running {
			r.metrics.Running.Set(1)
		} else {
			r.metrics.Running.Set(0)
		}
	}
	r.running.Store(running)
}
