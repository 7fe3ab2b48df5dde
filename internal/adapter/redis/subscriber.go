package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DecodePolicy decides what happens to a message whose payload fails to decode.
type DecodePolicy string

const (
	// DecodeSkip logs and counts the bad message, then keeps consuming.
	DecodeSkip DecodePolicy = "skip"
	// DecodeFail ends the stream with a *domain.DecodeError.
	DecodeFail DecodePolicy = "fail"
)

var ErrPayloadNotText = errors.New("payload is not valid UTF-8 text")

// DecodePayload is the single decode step applied to every bus message.
func DecodePayload(channel, payload string) (string, error) {
	if !utf8.ValidString(payload) {
		return "", &domain.DecodeError{Channel: channel, Payload: []byte(payload), Err: ErrPayloadNotText}
	}
	return payload, nil
}

type Subscriber struct {
	rdb     *goredis.Client
	policy  DecodePolicy
	metrics *metrics.RelayMetrics
}

func NewSubscriber(rdb *goredis.Client, policy DecodePolicy, m *metrics.RelayMetrics) *Subscriber {
	if policy != DecodeFail {
		policy = DecodeSkip
	}
	return &Subscriber{rdb: rdb, policy: policy, metrics: m}
}

// Subscribe opens a dedicated pub/sub connection and waits for the server to
// confirm the subscription before returning. Messages published after that
// point are delivered in order, none are dropped.
func (s *Subscriber) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := s.rdb.Subscribe(ctx, channel)

	reply, err := ps.Receive(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w: %w", channel, domain.ErrConnection, err)
	}
	if _, ok := reply.(*goredis.Subscription); !ok {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w: unexpected reply %T", channel, domain.ErrConnection, reply)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		channel: channel,
		ps:      ps,
		policy:  s.policy,
		metrics: s.metrics,
		out:     make(chan domain.Notification),
		ctx:     subCtx,
		cancel:  cancel,
	}

	// ReceiveMessage does not observe ctx on a blocking read; closing the
	// PubSub is what unblocks it.
	stop := context.AfterFunc(subCtx, func() { _ = ps.Close() })
	go func() {
		defer stop()
		sub.run()
	}()

	slog.Info("Subscribed to channel", "channel", channel)
	return sub, nil
}

// Subscription is a single-consumer notification stream over one PubSub connection.
type Subscription struct {
	channel string
	ps      *goredis.PubSub
	policy  DecodePolicy
	metrics *metrics.RelayMetrics
	out     chan domain.Notification
	ctx     context.Context
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error
}

var _ domain.NotificationStream = (*Subscription)(nil)

func (s *Subscription) Notifications() <-chan domain.Notification {
	return s.out
}

// Err reports why the stream ended. It is nil while the stream is live and
// after a Close or context cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() error {
	s.cancel()
	if err := s.ps.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return fmt.Errorf("failed to close subscription: %w", err)
	}
	return nil
}

func (s *Subscription) run() {
	defer close(s.out)

	for {
		msg, err := s.ps.ReceiveMessage(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.fail(fmt.Errorf("failed to receive from %s: %w", s.channel, err))
			return
		}

		payload, err := DecodePayload(msg.Channel, msg.Payload)
		if err != nil {
			if s.metrics != nil {
				s.metrics.DecodeFailures.Inc()
			}
			if s.policy == DecodeFail {
				s.fail(err)
				return
			}
			slog.Warn("Skipping undecodable message", "channel", msg.Channel, "bytes", len(msg.Payload), "error", err)
			continue
		}

		select {
		case s.out <- domain.Notification{Channel: msg.Channel, Payload: payload}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.cancel()
}
