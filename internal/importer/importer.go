// Package importer loads bookmarks from a JSON export.
package importer

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/store"
)

var ErrNoBookmarks = errors.New("no bookmarks found in file")

type (
	Entry struct {
		Title string
		URL   string
	}

	Result struct {
		Imported int
		Skipped  int
		Failed   int
	}

	Importer struct {
		ctrl     *store.Controller
		progress io.Writer
		logger   *zap.SugaredLogger
	}
)

// Parse accepts either {"bookmarks": [...]} or a top-level array of {"title", "url"} objects.
func Parse(data []byte) ([]Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}

	parsed := gjson.ParseBytes(data)
	list := parsed
	if !parsed.IsArray() {
		list = parsed.Get("bookmarks")
	}

	items := list.Array()
	if len(items) == 0 {
		return nil, ErrNoBookmarks
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Title: item.Get("title").String(),
			URL:   item.Get("url").String(),
		})
	}
	return entries, nil
}

// New returns an importer that adds entries through ctrl. Progress goes to w.
func New(ctrl *store.Controller, w io.Writer, l *zap.SugaredLogger) *Importer {
	return &Importer{
		ctrl:     ctrl,
		progress: w,
		logger:   l,
	}
}

// Import adds entries one by one. Entries without a title or url are skipped and
// entries the backend rejects are counted as failed. It stops early only when ctx is done.
func (i *Importer) Import(ctx context.Context, entries []Entry) (Result, error) {
	res := Result{}
	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(i.progress),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
	)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := i.ctrl.Insert(ctx, e.Title, e.URL)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, store.ErrEmptyInput):
			res.Skipped++
		default:
			i.logger.Debugw("import entry", "url", e.URL, "error", err)
			res.Failed++
		}
		_ = bar.Add(1)
	}

	_ = bar.Finish()
	return res, nil
}
