package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/store"
)

type fakeSubscription struct {
	changes chan models.Change

	mu     sync.Mutex
	closed int
}

func (s *fakeSubscription) Changes() <-chan models.Change { return s.changes }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSubscription) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFeed struct {
	sub *fakeSubscription
	err error
}

func (f *fakeFeed) Subscribe(context.Context) (backend.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func newFeed() *fakeFeed {
	return &fakeFeed{sub: &fakeSubscription{changes: make(chan models.Change, 8)}}
}

func TestTranslate(t *testing.T) {
	row := &models.Bookmark{ID: 3, Title: "Docs", URL: "https://example.com", UserID: 1}

	tests := []struct {
		name   string
		change models.Change
		want   store.Message
		ok     bool
	}{
		{name: "insert", change: models.Change{EventType: models.EventInsert, New: row}, want: store.RemoteInsert{Row: *row}, ok: true},
		{name: "delete", change: models.Change{EventType: models.EventDelete, Old: row}, want: store.RemoteDelete{ID: 3}, ok: true},
		{name: "update", change: models.Change{EventType: models.EventUpdate, New: row, Old: row}},
		{name: "insert without row", change: models.Change{EventType: models.EventInsert}},
		{name: "delete without row", change: models.Change{EventType: models.EventDelete}},
		{name: "unknown", change: models.Change{EventType: "TRUNCATE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.change)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunForwardsUntilFeedEnds(t *testing.T) {
	f := newFeed()
	b := NewBridge(f, zap.NewNop().Sugar())

	row := &models.Bookmark{ID: 3, UserID: 1}
	f.sub.changes <- models.Change{EventType: models.EventInsert, New: row}
	f.sub.changes <- models.Change{EventType: models.EventUpdate, New: row, Old: row}
	f.sub.changes <- models.Change{EventType: models.EventDelete, Old: row}
	close(f.sub.changes)

	out := make(chan store.Message, 8)
	err := b.Run(context.Background(), out)
	assert.Equal(t, ErrFeedClosed, err)

	var got []store.Message
	for msg := range out {
		got = append(got, msg)
	}
	assert.Equal(t, []store.Message{store.RemoteInsert{Row: *row}, store.RemoteDelete{ID: 3}}, got)
	assert.Equal(t, 1, f.sub.Closed())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFeed()
	b := NewBridge(f, zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan store.Message)
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, out)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}

	_, open := <-out
	assert.False(t, open)
	assert.Equal(t, 1, f.sub.Closed())
}

func TestRunSubscribeError(t *testing.T) {
	b := NewBridge(&fakeFeed{err: assert.AnError}, zap.NewNop().Sugar())

	out := make(chan store.Message)
	err := b.Run(context.Background(), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	_, open := <-out
	assert.False(t, open)
}

func TestForwardDeliversQueuedChanges(t *testing.T) {
	f := newFeed()
	b := NewBridge(f, zap.NewNop().Sugar())
	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)

	// committed between subscribing and forwarding
	row := &models.Bookmark{ID: 7, UserID: 1}
	f.sub.changes <- models.Change{EventType: models.EventInsert, New: row}
	close(f.sub.changes)
	assert.Equal(t, 0, f.sub.Closed())

	out := make(chan store.Message, 1)
	assert.Equal(t, ErrFeedClosed, b.Forward(ctx, sub, out))

	var got []store.Message
	for msg := range out {
		got = append(got, msg)
	}
	assert.Equal(t, []store.Message{store.RemoteInsert{Row: *row}}, got)
	assert.Equal(t, 1, f.sub.Closed())
}

func TestSubscribeError(t *testing.T) {
	b := NewBridge(&fakeFeed{err: assert.AnError}, zap.NewNop().Sugar())

	sub, err := b.Subscribe(context.Background())
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBridgeFeedsController(t *testing.T) {
	f := newFeed()
	l := zap.NewNop().Sugar()
	c := store.NewController(nopBookmarks{}, 1, nil, l)
	ctx := context.Background()

	row := models.Bookmark{ID: 5, UserID: 1}
	f.sub.changes <- models.Change{EventType: models.EventInsert, New: &row}
	f.sub.changes <- models.Change{EventType: models.EventInsert, New: &row}
	close(f.sub.changes)

	msgs := make(chan store.Message)
	go func() {
		_ = NewBridge(f, l).Run(ctx, msgs)
	}()
	require.NoError(t, c.Consume(ctx, msgs))

	assert.Equal(t, []models.Bookmark{row}, c.Bookmarks())
}

type nopBookmarks struct{}

func (nopBookmarks) List(context.Context, uint64) ([]models.Bookmark, error) { return nil, nil }

func (nopBookmarks) Insert(context.Context, models.NewBookmark) (*models.Bookmark, error) {
	return nil, nil
}

func (nopBookmarks) Delete(context.Context, uint64) error { return nil }
