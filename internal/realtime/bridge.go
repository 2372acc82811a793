// Package realtime turns the backend change feed into store messages.
package realtime

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/store"
)

var ErrFeedClosed = errors.New("change feed closed")

type Bridge struct {
	feed   backend.Feed
	logger *zap.SugaredLogger
}

func NewBridge(feed backend.Feed, l *zap.SugaredLogger) *Bridge {
	return &Bridge{
		feed:   feed,
		logger: l,
	}
}

// Run subscribes and forwards inserts and deletes into out until ctx is done or the
// feed ends. The subscription is released and out is closed on every return path.
func (b *Bridge) Run(ctx context.Context, out chan<- store.Message) error {
	sub, err := b.Subscribe(ctx)
	if err != nil {
		close(out)
		return err
	}
	return b.Forward(ctx, sub, out)
}

// Subscribe opens the change feed. Changes queue on the subscription until it is
// handed to Forward, which owns it from then on.
func (b *Bridge) Subscribe(ctx context.Context) (backend.Subscription, error) {
	sub, err := b.feed.Subscribe(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to changes")
	}
	return sub, nil
}

// Forward drains sub into out. It releases sub and closes out when it returns.
func (b *Bridge) Forward(ctx context.Context, sub backend.Subscription, out chan<- store.Message) error {
	defer close(out)
	defer func() {
		if err := sub.Close(); err != nil {
			b.logger.Warnw("release subscription", "error", err)
		}
	}()

	b.logger.Debug("listening for bookmark changes")

	changes := sub.Changes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return ErrFeedClosed
			}
			msg, ok := Translate(change)
			if !ok {
				b.logger.Debugw("ignoring change", "eventType", change.EventType)
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Translate maps a change notification to the store message it implies.
// Updates and malformed changes are dropped.
func Translate(change models.Change) (store.Message, bool) {
	switch change.EventType {
	case models.EventInsert:
		if change.New == nil {
			return nil, false
		}
		return store.RemoteInsert{Row: *change.New}, true
	case models.EventDelete:
		if change.Old == nil {
			return nil, false
		}
		return store.RemoteDelete{ID: change.Old.ID}, true
	}
	return nil, false
}
