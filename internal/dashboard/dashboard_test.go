package dashboard

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend/memory"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/session"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	backend    *memory.Backend
	me         models.Identity
	guard      *session.Guard
	redirected []string
	out        *syncBuffer
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()

	l := zap.NewNop().Sugar()
	f := &fixture{
		backend: memory.New(8, l),
		out:     &syncBuffer{},
	}
	t.Cleanup(f.backend.Close)

	f.me = f.backend.AddUser("me@example.com")
	if signedIn {
		require.NoError(t, f.backend.SignIn(f.me.ID))
	}
	f.guard = session.NewGuard(f.backend, session.NavigatorFunc(func(to string) {
		f.redirected = append(f.redirected, to)
	}), "/", l)
	return f
}

func (f *fixture) run(t *testing.T, in io.Reader) error {
	t.Helper()
	return New(f.backend, f.guard, in, f.out, zap.NewNop().Sugar()).Run(context.Background())
}

func TestRunUnauthenticated(t *testing.T) {
	f := newFixture(t, false)

	err := f.run(t, strings.NewReader("ls\n"))
	assert.Equal(t, session.ErrUnauthenticated, err)
	assert.Equal(t, []string{"/"}, f.redirected)
	assert.Empty(t, f.out.String())
	assert.Equal(t, 0, f.backend.Subscribers())
}

func TestRunCommands(t *testing.T) {
	f := newFixture(t, true)

	err := f.run(t, strings.NewReader(strings.Join([]string{
		"",
		"add Go Docs https://go.dev/doc",
		"add Blog",
		"add Blog https://blog.example",
		"rm nope",
		"rm 1",
		"frobnicate",
		"help",
		"ls",
		"quit",
		"add Never https://never.example",
	}, "\n")))
	require.NoError(t, err)

	out := f.out.String()
	assert.Contains(t, out, "Welcome, me@example.com")
	assert.Contains(t, out, EmptyState)
	assert.Contains(t, out, "usage: add <title> <url>")
	assert.Contains(t, out, `invalid id "nope"`)
	assert.Contains(t, out, `unknown command "frobnicate", type help`)
	assert.Contains(t, out, help)
	assert.True(t, strings.HasSuffix(out, "[2] Blog\n    https://blog.example\n"), out)

	rows, err := f.backend.List(context.Background(), f.me.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Blog", rows[0].Title)

	assert.Equal(t, 0, f.backend.Subscribers(), "subscription released on quit")
}

func TestRunDeleteFailure(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.backend.Insert(context.Background(), models.NewBookmark{Title: "Docs", URL: "https://example.com", UserID: f.me.ID})
	require.NoError(t, err)
	f.backend.FailDelete(assert.AnError)

	require.NoError(t, f.run(t, strings.NewReader("rm 1\nls\n")))

	out := f.out.String()
	assert.Contains(t, out, "! Failed to delete bookmark")
	assert.True(t, strings.HasSuffix(out, "[1] Docs\n    https://example.com\n"), out)
}

func TestRunAppliesRemoteChanges(t *testing.T) {
	f := newFixture(t, true)
	in, feed := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- f.run(t, in)
	}()

	require.Eventually(t, func() bool { return f.backend.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	// another session of the same user adds a bookmark
	_, err := f.backend.Insert(context.Background(), models.NewBookmark{Title: "Remote", URL: "https://remote.example", UserID: f.me.ID})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "[1] Remote")
	}, 2*time.Second, 10*time.Millisecond)

	_, err = feed.Write([]byte("logout\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard did not stop")
	}
	_ = feed.Close()

	assert.Equal(t, 0, f.backend.Subscribers())
	assert.Equal(t, session.Unauthenticated, f.guard.State())
	assert.Equal(t, []string{"/"}, f.redirected)

	identity, err := f.backend.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
}

// lateWrite adds a row right after the first list snapshot is taken, the way
// another session could while the page is still loading.
type lateWrite struct {
	*memory.Backend
	once sync.Once
}

func (b *lateWrite) List(ctx context.Context, owner uint64) ([]models.Bookmark, error) {
	rows, err := b.Backend.List(ctx, owner)
	b.once.Do(func() {
		_, _ = b.Backend.Insert(ctx, models.NewBookmark{Title: "Late", URL: "https://late.example", UserID: owner})
	})
	return rows, err
}

func TestRunKeepsChangesDuringLoad(t *testing.T) {
	f := newFixture(t, true)
	in, feed := io.Pipe()
	b := &lateWrite{Backend: f.backend}

	done := make(chan error, 1)
	go func() {
		done <- New(b, f.guard, in, f.out, zap.NewNop().Sugar()).Run(context.Background())
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "[1] Late")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, f.out.String(), EmptyState, "first render comes from the stale snapshot")

	_, err := feed.Write([]byte("quit\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard did not stop")
	}
	_ = feed.Close()
	assert.Equal(t, 0, f.backend.Subscribers())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, true)
	in, feed := io.Pipe()
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(f.backend, f.guard, in, f.out, zap.NewNop().Sugar()).Run(ctx)
	}()

	require.Eventually(t, func() bool { return f.backend.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard did not stop")
	}
	assert.Equal(t, 0, f.backend.Subscribers())
}

func TestSplitTitleURL(t *testing.T) {
	title, url := splitTitleURL([]string{"Go", "Docs", "https://go.dev"})
	assert.Equal(t, "Go Docs", title)
	assert.Equal(t, "https://go.dev", url)

	title, url = splitTitleURL([]string{"Docs"})
	assert.Equal(t, "Docs", title)
	assert.Empty(t, url)

	title, url = splitTitleURL(nil)
	assert.Empty(t, title)
	assert.Empty(t, url)
}
