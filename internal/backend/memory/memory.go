// Package memory is an in-process backend. Changes are fanned out through a feed hub
// exactly like bookmarkd does, which makes it suitable for tests and offline demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/feed"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrForbidden   = errors.New("row belongs to another user")
)

var _ backend.Backend = (*Backend)(nil)

type Backend struct {
	hub    *feed.Hub
	logger *zap.SugaredLogger

	mu       sync.Mutex
	users    map[uint64]models.Identity
	current  *models.Identity
	rows     map[uint64]models.Bookmark
	nextUser uint64
	nextID   uint64
	last     time.Time

	insertErr error
	deleteErr error
	listErr   error
	omitRow   bool
}

func New(buffer int, l *zap.SugaredLogger) *Backend {
	return &Backend{
		hub:    feed.NewHub(buffer, l),
		logger: l,
		users:  make(map[uint64]models.Identity),
		rows:   make(map[uint64]models.Bookmark),
	}
}

// AddUser registers an identity and returns it. It does not sign in.
func (b *Backend) AddUser(email string) models.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextUser++
	identity := models.Identity{ID: b.nextUser, Email: email}
	b.users[identity.ID] = identity
	return identity
}

func (b *Backend) SignIn(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	identity, ok := b.users[id]
	if !ok {
		return errors.Errorf("user %d not found", id)
	}
	b.current = &identity
	return nil
}

func (b *Backend) CurrentUser(context.Context) (*models.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, nil
	}
	identity := *b.current
	return &identity, nil
}

func (b *Backend) SignOut(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	return nil
}

// FailInsert makes every following Insert return err. Pass nil to reset.
func (b *Backend) FailInsert(err error) {
	b.mu.Lock()
	b.insertErr = err
	b.mu.Unlock()
}

func (b *Backend) FailDelete(err error) {
	b.mu.Lock()
	b.deleteErr = err
	b.mu.Unlock()
}

func (b *Backend) FailList(err error) {
	b.mu.Lock()
	b.listErr = err
	b.mu.Unlock()
}

// OmitInsertedRow makes Insert succeed without returning the created row.
func (b *Backend) OmitInsertedRow(omit bool) {
	b.mu.Lock()
	b.omitRow = omit
	b.mu.Unlock()
}

func (b *Backend) List(_ context.Context, owner uint64) ([]models.Bookmark, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listErr != nil {
		return nil, b.listErr
	}

	out := []models.Bookmark{}
	for _, row := range b.rows {
		if row.UserID == owner {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (b *Backend) Insert(ctx context.Context, nb models.NewBookmark) (*models.Bookmark, error) {
	b.mu.Lock()
	if b.insertErr != nil {
		err := b.insertErr
		b.mu.Unlock()
		return nil, err
	}
	if b.current == nil {
		b.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	if nb.UserID != b.current.ID {
		b.mu.Unlock()
		return nil, ErrForbidden
	}

	b.nextID++
	row := models.Bookmark{
		ID:        b.nextID,
		Title:     nb.Title,
		URL:       nb.URL,
		UserID:    nb.UserID,
		CreatedAt: b.tick(),
	}
	b.rows[row.ID] = row
	omit := b.omitRow
	b.mu.Unlock()

	b.publish(ctx, models.Change{EventType: models.EventInsert, New: &row})

	if omit {
		return nil, nil
	}
	return &row, nil
}

// Delete removes an owned row. Deleting a row that does not exist is not an error.
func (b *Backend) Delete(ctx context.Context, id uint64) error {
	b.mu.Lock()
	if b.deleteErr != nil {
		err := b.deleteErr
		b.mu.Unlock()
		return err
	}
	if b.current == nil {
		b.mu.Unlock()
		return ErrNotSignedIn
	}

	row, ok := b.rows[id]
	if !ok || row.UserID != b.current.ID {
		b.mu.Unlock()
		return nil
	}
	delete(b.rows, id)
	b.mu.Unlock()

	b.publish(ctx, models.Change{EventType: models.EventDelete, Old: &row})
	return nil
}

// Subscribe opens a change feed for the signed in user.
func (b *Backend) Subscribe(context.Context) (backend.Subscription, error) {
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()

	if current == nil {
		return nil, ErrNotSignedIn
	}
	sub, err := b.hub.Subscribe(current.ID)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}
	return sub, nil
}

// Subscribers returns the number of open change feeds.
func (b *Backend) Subscribers() int {
	return b.hub.Len()
}

// Close ends every open change feed.
func (b *Backend) Close() {
	b.hub.Close()
}

func (b *Backend) publish(ctx context.Context, change models.Change) {
	if err := b.hub.Publish(ctx, change); err != nil {
		b.logger.Warnw("publish change", "error", err)
	}
}

// tick must be called with mu held. Timestamps are strictly increasing.
func (b *Backend) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(b.last) {
		now = b.last.Add(time.Microsecond)
	}
	b.last = now
	return now
}
