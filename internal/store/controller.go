// Package store keeps the session's in-memory bookmark list consistent across the
// initial fetch, local mutations and remote change notifications.
//
// The list is newest-first and never holds two entries with the same id. New entries
// always go to the front and existing entries are never reordered. Whenever local
// state may have diverged from the backend, the controller reloads the full list.
package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

var ErrEmptyInput = errors.New("title and url are required")

type (
	// Notifier surfaces failed operations to the user.
	Notifier interface {
		Notify(message string, err error)
	}

	NotifierFunc func(message string, err error)

	// Draft holds the pending input fields of the add form.
	Draft struct {
		Title string
		URL   string
	}

	Controller struct {
		backend  backend.Bookmarks
		owner    uint64
		notifier Notifier
		logger   *zap.SugaredLogger

		// mu guards items and draft. It is never held across a backend call, so
		// remote events keep flowing while a request is in flight.
		mu    sync.Mutex
		items []models.Bookmark
		draft Draft

		changed chan struct{}
	}
)

func (f NotifierFunc) Notify(message string, err error) { f(message, err) }

func NewController(b backend.Bookmarks, owner uint64, n Notifier, l *zap.SugaredLogger) *Controller {
	if n == nil {
		n = NotifierFunc(func(string, error) {})
	}
	return &Controller{
		backend:  b,
		owner:    owner,
		notifier: n,
		logger:   l,
		items:    []models.Bookmark{},
		changed:  make(chan struct{}, 1),
	}
}

// Load replaces the whole list with the owner's bookmarks as the backend returns them.
// On error the current list is kept.
func (c *Controller) Load(ctx context.Context) error {
	rows, err := c.backend.List(ctx, c.owner)
	if err != nil {
		return errors.Wrap(err, "load bookmarks")
	}

	items := make([]models.Bookmark, len(rows))
	copy(items, rows)

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	c.logger.Debugw("bookmarks loaded", "count", len(items))
	c.signal()
	return nil
}

// Insert creates a bookmark owned by the session user.
// Empty input is refused without contacting the backend.
func (c *Controller) Insert(ctx context.Context, title, url string) error {
	if title == "" || url == "" {
		return ErrEmptyInput
	}

	row, err := c.backend.Insert(ctx, models.NewBookmark{
		Title:  title,
		URL:    url,
		UserID: c.owner,
	})
	if err != nil {
		c.notifier.Notify("Failed to add bookmark", err)
		return errors.Wrap(err, "insert bookmark")
	}

	if row == nil {
		c.logger.Warn("insert returned no row, reloading bookmarks")
		c.clearDraft()
		return c.resync(ctx)
	}

	// a realtime echo of this insert may have landed first
	if c.ApplyRemoteInsert(*row) {
		c.logger.Debugw("bookmark added", "id", row.ID)
	}
	c.clearDraft()
	return nil
}

// Submit inserts the current draft.
func (c *Controller) Submit(ctx context.Context) error {
	d := c.Draft()
	return c.Insert(ctx, d.Title, d.URL)
}

// Delete removes the bookmark locally before the backend confirms.
// If the backend rejects the delete the list is reloaded rather than patched back,
// so the entry reappears only once that reload completes.
func (c *Controller) Delete(ctx context.Context, id uint64) error {
	c.remove(id)

	if err := c.backend.Delete(ctx, id); err != nil {
		c.notifier.Notify("Failed to delete bookmark", err)
		if rerr := c.resync(ctx); rerr != nil {
			c.logger.Errorw("reload after failed delete", "error", rerr)
		}
		return errors.Wrap(err, "delete bookmark")
	}
	return nil
}

// ApplyRemoteInsert prepends row unless an entry with its id is already present.
// It reports whether the list changed.
func (c *Controller) ApplyRemoteInsert(row models.Bookmark) bool {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == row.ID {
			c.mu.Unlock()
			return false
		}
	}
	items := make([]models.Bookmark, 0, len(c.items)+1)
	items = append(items, row)
	c.items = append(items, c.items...)
	c.mu.Unlock()

	c.signal()
	return true
}

// ApplyRemoteDelete drops the entry with id if present. It reports whether the list changed.
func (c *Controller) ApplyRemoteDelete(id uint64) bool {
	return c.remove(id)
}

// Bookmarks returns a snapshot of the list.
func (c *Controller) Bookmarks() []models.Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Bookmark, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Controller) Owner() uint64 {
	return c.owner
}

func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) SetDraft(title, url string) {
	c.mu.Lock()
	c.draft = Draft{Title: title, URL: url}
	c.mu.Unlock()
}

// Changes receives a signal after the list changes. Signals coalesce: a reader
// that falls behind sees one pending signal, then reads the latest snapshot.
func (c *Controller) Changes() <-chan struct{} {
	return c.changed
}

func (c *Controller) resync(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		c.notifier.Notify("Failed to refresh bookmarks", err)
		return err
	}
	return nil
}

func (c *Controller) remove(id uint64) bool {
	c.mu.Lock()
	idx := -1
	for i := range c.items {
		if c.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	items := make([]models.Bookmark, 0, len(c.items)-1)
	items = append(items, c.items[:idx]...)
	c.items = append(items, c.items[idx+1:]...)
	c.mu.Unlock()

	c.signal()
	return true
}

func (c *Controller) clearDraft() {
	c.mu.Lock()
	c.draft = Draft{}
	c.mu.Unlock()
}

func (c *Controller) signal() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}
