package broadcast

import "sync"

// QueueSink is a Sink backed by a bounded channel. Send never blocks; the transport
// goroutine owning the connection drains Queue and watches Done.
type QueueSink struct {
	queue    chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func NewQueueSink(size int) *QueueSink {
	if size < 1 {
		size = 1
	}
	return &QueueSink{
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

// Send enqueues chunk. Chunks are shared between sinks and must not be modified.
func (s *QueueSink) Send(chunk []byte) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.queue <- chunk:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close marks the sink as gone. Safe to call more than once.
func (s *QueueSink) Close() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *QueueSink) Queue() <-chan []byte {
	return s.queue
}

func (s *QueueSink) Done() <-chan struct{} {
	return s.done
}
