package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pscheid92/planetpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Publisher sends planet announcements over the command client.
type Publisher struct {
	rdb     goredis.Cmdable
	channel string
}

var _ domain.PlanetPublisher = (*Publisher)(nil)

func NewPublisher(rdb goredis.Cmdable, channel string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel}
}

// Publish returns the number of subscribers that received the payload.
func (p *Publisher) Publish(ctx context.Context, payload string) (int64, error) {
	n, err := p.rdb.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return n, nil
}

func (p *Publisher) PublishPlanetCreated(ctx context.Context, planet *domain.Planet) error {
	data, err := json.Marshal(planet)
	if err != nil {
		return fmt.Errorf("failed to marshal planet: %w", err)
	}
	if _, err := p.Publish(ctx, string(data)); err != nil {
		return err
	}
	return nil
}
