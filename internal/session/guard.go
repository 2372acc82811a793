// Package session decides whether the user may see the bookmark page.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

type State int

const (
	Unresolved State = iota
	Authenticated
	Unauthenticated
)

var ErrUnauthenticated = errors.New("not signed in")

type (
	// Navigator sends the user somewhere else, typically the sign-in entry point.
	Navigator interface {
		Redirect(to string)
	}

	NavigatorFunc func(to string)

	Session struct {
		Identity models.Identity
	}

	Guard struct {
		auth       backend.Auth
		navigator  Navigator
		entryPoint string
		logger     *zap.SugaredLogger

		// mu is held across the identity lookup so concurrent Resolve calls share one attempt
		mu      sync.Mutex
		state   State
		session *Session
	}
)

func (f NavigatorFunc) Redirect(to string) { f(to) }

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

func NewGuard(auth backend.Auth, nav Navigator, entryPoint string, l *zap.SugaredLogger) *Guard {
	return &Guard{
		auth:       auth,
		navigator:  nav,
		entryPoint: entryPoint,
		logger:     l,
	}
}

// Resolve looks the current identity up once. Without an identity the user is
// redirected to the entry point and ErrUnauthenticated is returned; lookup
// failures are treated the same way. The outcome is cached.
func (g *Guard) Resolve(ctx context.Context) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case Authenticated:
		return g.session, nil
	case Unauthenticated:
		return nil, ErrUnauthenticated
	}

	identity, err := g.auth.CurrentUser(ctx)
	if err != nil {
		g.logger.Warnw("identity lookup failed", "error", err)
	}
	if err != nil || identity == nil {
		g.leave()
		return nil, ErrUnauthenticated
	}

	g.state = Authenticated
	g.session = &Session{Identity: *identity}
	g.logger.Debugw("session established", "user", identity.ID)
	return g.session, nil
}

// SignOut ends the session. The user is redirected even when the backend call fails.
func (g *Guard) SignOut(ctx context.Context) error {
	err := g.auth.SignOut(ctx)

	g.mu.Lock()
	g.leave()
	g.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "sign out")
	}
	return nil
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Session returns nil unless the guard is Authenticated.
func (g *Guard) Session() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// leave must be called with mu held.
func (g *Guard) leave() {
	g.state = Unauthenticated
	g.session = nil
	if g.navigator != nil {
		g.navigator.Redirect(g.entryPoint)
	}
}
