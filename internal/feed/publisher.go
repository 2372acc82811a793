package feed

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

// RedisChannel carries change events between bookmarkd instances.
const RedisChannel = "bookmarks:changes"

type Publisher interface {
	Publish(ctx context.Context, change models.Change) error
}

// NopPublisher is used when the database itself emits change events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Change) error { return nil }

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, change models.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "marshal change")
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

func decodeChange(payload string) (models.Change, error) {
	change := models.Change{}
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return change, errors.Wrap(err, "decode change")
	}
	if change.Owner() == 0 {
		return change, errors.New("change has no owner")
	}
	return change, nil
}
