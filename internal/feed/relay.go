package feed

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/db"
)

// Relay forwards change events from an external source into the hub until ctx ends.
type Relay interface {
	Run(ctx context.Context) error
}

type PostgresRelay struct {
	dsn    string
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewPostgresRelay(dsn string, hub *Hub, l *zap.SugaredLogger) *PostgresRelay {
	return &PostgresRelay{
		dsn:    dsn,
		hub:    hub,
		logger: l,
	}
}

func (r *PostgresRelay) Run(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, r.dsn)
	if err != nil {
		return errors.Wrap(err, "connect listener")
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+db.ChangeChannel); err != nil {
		return errors.Wrap(err, "listen")
	}
	r.logger.Infow("listening for bookmark changes", "channel", db.ChangeChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "wait for notification")
		}

		change, err := decodeChange(n.Payload)
		if err != nil {
			r.logger.Warnw("dropping malformed notification", "error", err)
			continue
		}
		if err := r.hub.Publish(ctx, change); err != nil {
			return err
		}
	}
}

type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *zap.SugaredLogger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, l *zap.SugaredLogger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  l,
	}
}

func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "redis subscribe")
	}
	r.logger.Infow("listening for bookmark changes", "channel", r.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			change, err := decodeChange(msg.Payload)
			if err != nil {
				r.logger.Warnw("dropping malformed message", "error", err)
				continue
			}
			if err := r.hub.Publish(ctx, change); err != nil {
				return err
			}
		}
	}
}
