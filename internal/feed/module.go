package feed

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
)

var (
	Module = fx.Provide(
		NewLifecycleHub,
		NewPublisher,
	)
)

func NewLifecycleHub(lc fx.Lifecycle, cfg *config.Config, l *zap.SugaredLogger) *Hub {
	hub := NewHub(cfg.FeedBuffer, l)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Info("Closing change feed.")
			hub.Close()
			return nil
		},
	})
	return hub
}

// NewPublisher picks where the service sends change events, and starts the relay
// that brings them back into the local hub.
func NewPublisher(lc fx.Lifecycle, cfg *config.Config, hub *Hub, l *zap.SugaredLogger) (Publisher, error) {
	switch cfg.FeedDriver {
	case config.FeedDriverMemory:
		return hub, nil
	case config.FeedDriverPostgres:
		runRelay(lc, NewPostgresRelay(cfg.DSN(), hub, l), l)
		return NopPublisher{}, nil
	case config.FeedDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return errors.Wrap(client.Ping(ctx).Err(), "ping redis")
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
		runRelay(lc, NewRedisRelay(client, RedisChannel, hub, l), l)
		return NewRedisPublisher(client, RedisChannel), nil
	}
	return nil, errors.Errorf("unknown feed driver %q", cfg.FeedDriver)
}

func runRelay(lc fx.Lifecycle, relay Relay, l *zap.SugaredLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := relay.Run(ctx); err != nil {
					l.Errorw("change feed relay stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
