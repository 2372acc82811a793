package store

import (
	"context"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

type (
	// Message is a remote change to apply to the list.
	Message interface {
		applyTo(c *Controller) bool
	}

	RemoteInsert struct {
		Row models.Bookmark
	}

	RemoteDelete struct {
		ID uint64
	}
)

func (m RemoteInsert) applyTo(c *Controller) bool { return c.ApplyRemoteInsert(m.Row) }

func (m RemoteDelete) applyTo(c *Controller) bool { return c.ApplyRemoteDelete(m.ID) }

// Consume applies messages until msgs is closed or ctx is done.
func (c *Controller) Consume(ctx context.Context, msgs <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if !msg.applyTo(c) {
				c.logger.Debugw("remote change already reflected", "message", msg)
			}
		}
	}
}
