package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend/rest"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/session"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bookmarks", cmd.Use)
	assert.NotNil(t, cmd.RunE, "dashboard is the default action")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"register", "login", "logout", "whoami", "list", "add", "rm", "import", "dashboard"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	for _, name := range []string{"server", "token-file"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Empty(t, flag.DefValue)
	}
}

func TestCredentialFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"register", "login"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.NotNil(t, sub.Flags().Lookup("email"))
		require.NotNil(t, sub.Flags().Lookup("password"))
	}
}

func TestArgValidation(t *testing.T) {
	cmd := NewRootCommand()

	add, _, err := cmd.Find([]string{"add"})
	require.NoError(t, err)
	assert.Error(t, add.Args(add, []string{"only-title"}))
	assert.NoError(t, add.Args(add, []string{"Go", "Docs", "https://go.dev"}))

	rm, _, err := cmd.Find([]string{"rm"})
	require.NoError(t, err)
	assert.Error(t, rm.Args(rm, nil))
	assert.NoError(t, rm.Args(rm, []string{"3"}))
}

func TestSetupFlagOverrides(t *testing.T) {
	opts := &RootOptions{
		Server:    "http://example.test:9999",
		TokenFile: filepath.Join(t.TempDir(), "token"),
		Verbose:   true,
	}
	require.NoError(t, opts.setup())

	assert.Equal(t, "http://example.test:9999", opts.config.ServerURL)
	assert.Equal(t, opts.TokenFile, opts.config.TokenFile)
	assert.Equal(t, "debug", opts.config.LogLevel)
	assert.NotNil(t, opts.client)
}

func TestOpenWithoutToken(t *testing.T) {
	cfg := &config.ClientConfig{ServerURL: "http://127.0.0.1:1", TokenFile: filepath.Join(t.TempDir(), "token")}
	l := zap.NewNop().Sugar()
	opts := &RootOptions{config: cfg, logger: l, client: rest.NewClient(cfg, l)}
	var out bytes.Buffer

	// no token file means no request is made
	_, _, err := opts.open(context.Background(), &out)
	assert.Equal(t, session.ErrUnauthenticated, err)
	assert.Equal(t, "You are not signed in. Run `bookmarks login` to continue.\n", out.String())
}

func TestNotifier(t *testing.T) {
	var out bytes.Buffer
	Notifier(&out).Notify("Failed to add bookmark", assert.AnError)
	assert.Equal(t, "! Failed to add bookmark: "+assert.AnError.Error()+"\n", out.String())
}
