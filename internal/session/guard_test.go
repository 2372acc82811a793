package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

type fakeAuth struct {
	mu         sync.Mutex
	identity   *models.Identity
	lookupErr  error
	signOutErr error
	lookups    int
	signOuts   int
}

func (a *fakeAuth) CurrentUser(context.Context) (*models.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookups++
	return a.identity, a.lookupErr
}

func (a *fakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signOuts++
	return a.signOutErr
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Redirect(to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, to)
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.targets...)
}

const entry = "/"

func newGuard(a *fakeAuth) (*Guard, *recordingNavigator) {
	nav := &recordingNavigator{}
	return NewGuard(a, nav, entry, zap.NewNop().Sugar()), nav
}

func TestResolveAuthenticated(t *testing.T) {
	a := &fakeAuth{identity: &models.Identity{ID: 7, Email: "me@example.com"}}
	g, nav := newGuard(a)
	assert.Equal(t, Unresolved, g.State())
	assert.Nil(t, g.Session())

	s, err := g.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: 7, Email: "me@example.com"}, s.Identity)
	assert.Equal(t, Authenticated, g.State())
	assert.Same(t, s, g.Session())
	assert.Empty(t, nav.Targets())

	again, err := g.Resolve(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, a.lookups)
}

func TestResolveUnauthenticated(t *testing.T) {
	tests := []struct {
		name string
		auth *fakeAuth
	}{
		{name: "no identity", auth: &fakeAuth{}},
		{name: "lookup error", auth: &fakeAuth{lookupErr: assert.AnError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, nav := newGuard(tt.auth)

			s, err := g.Resolve(context.Background())
			assert.Nil(t, s)
			assert.Equal(t, ErrUnauthenticated, err)
			assert.Equal(t, Unauthenticated, g.State())
			assert.Equal(t, []string{entry}, nav.Targets())

			_, err = g.Resolve(context.Background())
			assert.Equal(t, ErrUnauthenticated, err)
			assert.Equal(t, 1, tt.auth.lookups)
			assert.Equal(t, []string{entry}, nav.Targets(), "redirect happens once")
		})
	}
}

func TestResolveConcurrentSingleLookup(t *testing.T) {
	a := &fakeAuth{identity: &models.Identity{ID: 1}}
	g, _ := newGuard(a)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Resolve(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, a.lookups)
}

func TestSignOut(t *testing.T) {
	a := &fakeAuth{identity: &models.Identity{ID: 1}}
	g, nav := newGuard(a)
	_, err := g.Resolve(context.Background())
	require.NoError(t, err)

	require.NoError(t, g.SignOut(context.Background()))
	assert.Equal(t, Unauthenticated, g.State())
	assert.Nil(t, g.Session())
	assert.Equal(t, []string{entry}, nav.Targets())
	assert.Equal(t, 1, a.signOuts)
}

func TestSignOutFailureStillRedirects(t *testing.T) {
	a := &fakeAuth{identity: &models.Identity{ID: 1}, signOutErr: assert.AnError}
	g, nav := newGuard(a)
	_, err := g.Resolve(context.Background())
	require.NoError(t, err)

	err = g.SignOut(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, Unauthenticated, g.State())
	assert.Equal(t, []string{entry}, nav.Targets())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unresolved", Unresolved.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "unknown", State(9).String())
}
