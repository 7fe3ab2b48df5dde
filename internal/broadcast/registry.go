package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/domain"
)

var (
	// ErrSinkClosed is returned by a sink whose client has gone away.
	ErrSinkClosed = errors.New("sink closed")
	// ErrSinkFull is returned by a sink whose bounded queue cannot accept another chunk.
	ErrSinkFull = errors.New("sink queue full")
)

// ClientID identifies a registered sink.
type ClientID = uuid.UUID

// BroadcastResult summarizes one broadcast pass.
type BroadcastResult struct {
	Delivered int
	Failed    int
}

type registeredSink struct {
	id   ClientID
	sink domain.Sink
}

// Registry is the concurrency-safe set of live client sinks.
type Registry struct {
	mu      sync.Mutex
	sinks   map[ClientID]domain.Sink
	closed  bool
	metrics *metrics.StreamMetrics
}

// NewRegistry creates an empty registry. streamMetrics may be nil.
func NewRegistry(streamMetrics *metrics.StreamMetrics) *Registry {
	return &Registry{
		sinks:   make(map[ClientID]domain.Sink),
		metrics: streamMetrics,
	}
}

// Register adds a sink to the live set. No I/O happens here.
// After CloseAll the sink is closed immediately and never joins the set.
func (r *Registry) Register(sink domain.Sink) ClientID {
	id := uuid.New()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sink.Close()
		slog.Debug("Registry closed, rejecting client", "client_id", id.String())
		return id
	}
	r.sinks[id] = sink
	count := len(r.sinks)
	r.setActive(count)
	r.mu.Unlock()

	slog.Debug("Client registered", "client_id", id.String(), "total_clients", count)
	return id
}

// Deregister removes and closes a sink. Removing an unknown id is a no-op.
func (r *Registry) Deregister(id ClientID) {
	r.mu.Lock()
	sink, ok := r.sinks[id]
	if ok {
		delete(r.sinks, id)
		r.setActive(len(r.sinks))
	}
	count := len(r.sinks)
	r.mu.Unlock()

	if !ok {
		return
	}

	sink.Close()
	slog.Debug("Client deregistered", "client_id", id.String(), "remaining_clients", count)
}

// Broadcast delivers chunk to every sink registered when the call began.
// A failing sink never aborts delivery to the others; it is deregistered afterwards.
func (r *Registry) Broadcast(chunk []byte) BroadcastResult {
	snapshot := r.snapshot()

	var (
		result BroadcastResult
		failed []ClientID
	)
	for _, s := range snapshot {
		if err := s.sink.Send(chunk); err != nil {
			slog.Debug("Delivery failed, dropping client", "client_id", s.id.String(), "error", err)
			failed = append(failed, s.id)
			continue
		}
		result.Delivered++
	}
	result.Failed = len(failed)

	for _, id := range failed {
		r.Deregister(id)
	}

	if r.metrics != nil {
		r.metrics.Deliveries.WithLabelValues("delivered").Add(float64(result.Delivered))
		r.metrics.Deliveries.WithLabelValues("failed").Add(float64(result.Failed))
	}
	return result
}

// Count returns the number of live sinks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// CloseAll deregisters and closes every sink and stops accepting new ones.
// Used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = make(map[ClientID]domain.Sink)
	r.closed = true
	r.setActive(0)
	r.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}
	return len(sinks)
}

func (r *Registry) snapshot() []registeredSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]registeredSink, 0, len(r.sinks))
	for id, sink := range r.sinks {
		out = append(out, registeredSink{id: id, sink: sink})
	}
	return out
}

// setActive must be called with mu held so gauge updates follow registry order.
func (r *Registry) setActive(count int) {
	if r.metrics != nil {
		r.metrics.ActiveClients.Set(float64(count))
	}
}
