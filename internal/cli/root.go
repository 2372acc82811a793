// Package cli wires the bookmarks command line client.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend/rest"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/logger"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/session"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/store"
)

// EntryPoint is where an unauthenticated user is sent.
const EntryPoint = "bookmarks login"

// RootOptions holds global flags and the clients built from them.
type RootOptions struct {
	Server    string
	TokenFile string
	Verbose   bool

	config *config.ClientConfig
	logger *zap.SugaredLogger
	client *rest.Client
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "bookmarks",
		Short:         "Smart Bookmarks",
		Long:          "Keep a private list of bookmarks in sync across every open session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "bookmarkd url (overrides BOOKMARKS_SERVER_URL)")
	cmd.PersistentFlags().StringVar(&opts.TokenFile, "token-file", "", "session token file (overrides BOOKMARKS_TOKEN_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewDashboardCommand(opts))

	return cmd
}

func (o *RootOptions) setup() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.NewClientConfig()
	if err != nil {
		return err
	}
	if o.Server != "" {
		cfg.ServerURL = o.Server
	}
	if o.TokenFile != "" {
		cfg.TokenFile = o.TokenFile
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}

	l, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		return err
	}

	o.config = cfg
	o.logger = l
	o.client = rest.NewClient(cfg, l)
	return nil
}

func (o *RootOptions) guard(w io.Writer) *session.Guard {
	return session.NewGuard(o.client, Navigator(w), EntryPoint, o.logger)
}

// open resolves the session and returns a controller for the signed in user.
func (o *RootOptions) open(ctx context.Context, w io.Writer) (*models.Identity, *store.Controller, error) {
	sess, err := o.guard(w).Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	ctrl := store.NewController(o.client, sess.Identity.ID, Notifier(w), o.logger)
	return &sess.Identity, ctrl, nil
}

// Navigator tells the user how to sign in.
func Navigator(w io.Writer) session.Navigator {
	return session.NavigatorFunc(func(to string) {
		fmt.Fprintf(w, "You are not signed in. Run `%s` to continue.\n", to)
	})
}

func Notifier(w io.Writer) store.Notifier {
	return store.NotifierFunc(func(message string, err error) {
		fmt.Fprintf(w, "! %s: %v\n", message, err)
	})
}
