// Package backend defines what the bookmark client needs from the hosted backend:
// identity, row access for the bookmarks table, and a change feed.
package backend

import (
	"context"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

type (
	Auth interface {
		// CurrentUser returns nil without error when nobody is signed in.
		CurrentUser(ctx context.Context) (*models.Identity, error)
		SignOut(ctx context.Context) error
	}

	Bookmarks interface {
		// List returns the owner's bookmarks ordered by created_at, newest first.
		List(ctx context.Context, owner uint64) ([]models.Bookmark, error)
		// Insert may return a nil row on success when the backend does not echo it back.
		Insert(ctx context.Context, bookmark models.NewBookmark) (*models.Bookmark, error)
		Delete(ctx context.Context, id uint64) error
	}

	Feed interface {
		Subscribe(ctx context.Context) (Subscription, error)
	}

	// Subscription is a live change feed. Changes is closed when the feed ends.
	Subscription interface {
		Changes() <-chan models.Change
		Close() error
	}

	Backend interface {
		Auth
		Bookmarks
		Feed
	}
)
