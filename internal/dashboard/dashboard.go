// Package dashboard is the interactive bookmark page of the CLI.
package dashboard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/realtime"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/session"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/store"
)

const help = `commands:
  add <title> <url>   add a bookmark, the last word is the url
  rm <id>             delete a bookmark
  ls                  show the list
  refresh             reload the list from the server
  logout              sign out and leave
  quit                leave
`

type Dashboard struct {
	backend backend.Backend
	guard   *session.Guard
	in      io.Reader
	logger  *zap.SugaredLogger

	outMu sync.Mutex
	out   io.Writer
}

func New(b backend.Backend, g *session.Guard, in io.Reader, out io.Writer, l *zap.SugaredLogger) *Dashboard {
	return &Dashboard{
		backend: b,
		guard:   g,
		in:      in,
		out:     out,
		logger:  l,
	}
}

// Run shows the page until the input ends, the user quits or signs out, or ctx is done.
// The change subscription lives exactly as long as Run. It is opened before the
// initial load, so a change committed while the list is fetched is applied once
// the page is up instead of being missed.
func (d *Dashboard) Run(ctx context.Context) error {
	sess, err := d.guard.Resolve(ctx)
	if err != nil {
		return err
	}
	email := sess.Identity.Email

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	bridge := realtime.NewBridge(d.backend, d.logger)
	sub, err := bridge.Subscribe(ctx)
	if err != nil {
		d.notify("Realtime updates unavailable, use refresh to reload", err)
	}

	ctrl := store.NewController(d.backend, sess.Identity.ID, store.NotifierFunc(d.notify), d.logger)
	if err := ctrl.Load(ctx); err != nil {
		d.notify("Failed to load bookmarks", err)
	}
	select {
	case <-ctrl.Changes():
	default:
	}
	d.render(email, ctrl)

	if sub != nil {
		// replayed changes already covered by the load are absorbed by the controller
		msgs := make(chan store.Message)
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := bridge.Forward(ctx, sub, msgs)
			if err != nil && !errors.Is(err, context.Canceled) {
				d.notify("Realtime updates stopped, use refresh to reload", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = ctrl.Consume(ctx, msgs)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.watch(ctx, ctrl, email)
	}()

	return d.loop(ctx, ctrl, email)
}

func (d *Dashboard) watch(ctx context.Context, ctrl *store.Controller, email string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Changes():
			d.render(email, ctrl)
		}
	}
}

func (d *Dashboard) loop(ctx context.Context, ctrl *store.Controller, email string) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(d.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := d.exec(ctx, ctrl, email, line); done {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the page should close.
func (d *Dashboard) exec(ctx context.Context, ctrl *store.Controller, email, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "add":
		title, url := splitTitleURL(args)
		ctrl.SetDraft(title, url)
		if err := ctrl.Submit(ctx); errors.Is(err, store.ErrEmptyInput) {
			d.printf("usage: add <title> <url>\n")
		}
	case "rm":
		if len(args) != 1 {
			d.printf("usage: rm <id>\n")
			return false
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			d.printf("invalid id %q\n", args[0])
			return false
		}
		_ = ctrl.Delete(ctx, id)
	case "ls":
		d.render(email, ctrl)
	case "refresh":
		if err := ctrl.Load(ctx); err != nil {
			d.notify("Failed to refresh bookmarks", err)
		}
	case "logout":
		if err := d.guard.SignOut(ctx); err != nil {
			d.notify("Failed to sign out", err)
		}
		return true
	case "quit", "exit":
		return true
	case "help":
		d.printf("%s", help)
	default:
		d.printf("unknown command %q, type help\n", cmd)
	}
	return false
}

func (d *Dashboard) render(email string, ctrl *store.Controller) {
	d.outMu.Lock()
	defer d.outMu.Unlock()

	if err := Render(d.out, email, ctrl.Bookmarks()); err != nil {
		d.logger.Warnw("render", "error", err)
	}
}

func (d *Dashboard) notify(message string, err error) {
	d.logger.Warnw(strings.ToLower(message), "error", err)
	d.printf("! %s\n", message)
}

func (d *Dashboard) printf(format string, args ...interface{}) {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

func splitTitleURL(args []string) (string, string) {
	if len(args) < 2 {
		return strings.Join(args, " "), ""
	}
	return strings.Join(args[:len(args)-1], " "), args[len(args)-1]
}
