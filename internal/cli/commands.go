package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/dashboard"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/importer"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/session"
)

type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "account password (or BOOKMARKS_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func (c *credentials) resolvePassword() (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	if p := os.Getenv("BOOKMARKS_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("password is required")
}

func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := creds.resolvePassword()
			if err != nil {
				return err
			}
			if err := opts.client.Register(cmd.Context(), creds.email, password); err != nil {
				return errors.Wrap(err, "register")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", creds.email)
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func NewLoginCommand(opts *RootOptions) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := creds.resolvePassword()
			if err != nil {
				return err
			}
			if err := opts.client.Login(cmd.Context(), creds.email, password); err != nil {
				return errors.Wrap(err, "login")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", creds.email)
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.guard(cmd.OutOrStdout()).SignOut(cmd.Context())
		},
	}
}

func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.guard(cmd.OutOrStdout()).Resolve(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.Identity.Email)
			return nil
		},
	}
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Print your bookmarks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, ctrl, err := opts.open(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			return dashboard.Render(cmd.OutOrStdout(), identity.Email, ctrl.Bookmarks())
		},
	}
}

func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title> <url>",
		Short: "Add a bookmark",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := opts.open(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			title, url := strings.Join(args[:len(args)-1], " "), args[len(args)-1]
			if err := ctrl.Insert(cmd.Context(), title, url); err != nil {
				return err
			}
			if items := ctrl.Bookmarks(); len(items) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Added [%d] %s\n", items[0].ID, items[0].Title)
			}
			return nil
		},
	}
}

func NewRmCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a bookmark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Errorf("invalid id %q", args[0])
			}
			_, ctrl, err := opts.open(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := ctrl.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted [%d]\n", id)
			return nil
		},
	}
}

func NewImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import bookmarks from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entries, err := importer.Parse(data)
			if err != nil {
				return errors.Wrap(err, args[0])
			}

			_, ctrl, err := opts.open(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			res, err := importer.New(ctrl, cmd.ErrOrStderr(), opts.logger).Import(cmd.Context(), entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nImport complete: %d imported, %d skipped, %d failed\n",
				res.Imported, res.Skipped, res.Failed)
			return nil
		},
	}
}

func NewDashboardCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live bookmark page (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, opts)
		},
	}
}

func runDashboard(cmd *cobra.Command, opts *RootOptions) error {
	out := cmd.OutOrStdout()
	d := dashboard.New(opts.client, opts.guard(out), cmd.InOrStdin(), out, opts.logger)

	err := d.Run(cmd.Context())
	if errors.Is(err, session.ErrUnauthenticated) {
		return nil
	}
	return err
}
