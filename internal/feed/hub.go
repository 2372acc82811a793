package feed

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

var ErrHubClosed = errors.New("feed hub closed")

// Hub fans change events out to subscribers of the row owner.
// A subscriber that cannot keep up is evicted: its channel is closed instead of
// losing events silently, so the consumer knows its view may be stale.
type Hub struct {
	logger *zap.SugaredLogger
	buffer int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

type Subscription struct {
	id    uint64
	owner uint64
	ch    chan models.Change
	hub   *Hub
}

func NewHub(buffer int, l *zap.SugaredLogger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		logger: l,
		buffer: buffer,
		subs:   make(map[uint64]*Subscription),
	}
}

func (h *Hub) Subscribe(owner uint64) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	sub := &Subscription{
		id:    h.nextID,
		owner: owner,
		ch:    make(chan models.Change, h.buffer),
		hub:   h,
	}
	h.subs[sub.id] = sub

	h.logger.Debugw("feed subscriber added", "subscriber", sub.id, "owner", owner)
	return sub, nil
}

// Publish delivers change to every subscriber of its owner. It never blocks.
func (h *Hub) Publish(_ context.Context, change models.Change) error {
	owner := change.Owner()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	for id, sub := range h.subs {
		if sub.owner != owner {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			h.logger.Warnw("feed subscriber too slow, evicting", "subscriber", id, "owner", owner)
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	h.logger.Debugw("feed subscriber removed", "subscriber", id)
}

func (s *Subscription) Changes() <-chan models.Change {
	return s.ch
}

// Close is safe to call more than once and after the hub has closed.
func (s *Subscription) Close() error {
	s.hub.remove(s.id)
	return nil
}
