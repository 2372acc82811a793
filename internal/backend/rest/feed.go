package rest

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

type subscription struct {
	changes chan models.Change
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Subscribe opens the server-sent change stream. The subscription ends when ctx is
// done, the server closes the stream, or Close is called.
func (c *Client) Subscribe(ctx context.Context) (backend.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.request(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := req.
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get("/bookmarks/changes")
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "open change stream")
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer body.Close()
		defer cancel()
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		raw, _ := io.ReadAll(body)
		return nil, errors.Errorf("open change stream: %s: %s", resp.Status(), errorMessage(raw))
	}

	sub := &subscription{
		changes: make(chan models.Change, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.read(ctx, body, c.logger)
	return sub, nil
}

func (s *subscription) Changes() <-chan models.Change {
	return s.changes
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *subscription) read(ctx context.Context, body io.ReadCloser, l *zap.SugaredLogger) {
	defer close(s.done)
	defer close(s.changes)
	defer s.cancel()
	defer body.Close()

	// a cancelled context does not interrupt a blocked read on every transport
	go func() {
		<-ctx.Done()
		body.Close()
	}()

	err := readEvents(body, func(event, data string) bool {
		change, err := decodeChange(data)
		if err != nil {
			l.Warnw("skipping malformed change", "event", event, "error", err)
			return true
		}
		select {
		case s.changes <- change:
			return true
		case <-ctx.Done():
			return false
		}
	})
	if err != nil && ctx.Err() == nil {
		l.Warnw("change stream ended", "error", err)
	}
}

// readEvents parses a text/event-stream and calls fn for every event that carries data.
// It stops when fn returns false or the stream ends.
func readEvents(r io.Reader, fn func(event, data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		event string
		data  []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if !fn(event, strings.Join(data, "\n")) {
					return nil
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value := line, ""
			if i := strings.IndexByte(line, ':'); i >= 0 {
				field, value = line[:i], strings.TrimPrefix(line[i+1:], " ")
			}
			switch field {
			case "event":
				event = value
			case "data":
				data = append(data, value)
			}
		}
	}
	return scanner.Err()
}

func decodeChange(data string) (models.Change, error) {
	if !gjson.Valid(data) {
		return models.Change{}, errors.New("invalid json")
	}
	parsed := gjson.Parse(data)

	change := models.Change{EventType: models.EventType(parsed.Get("eventType").String())}
	if n := parsed.Get("new"); n.IsObject() {
		change.New = bookmarkFrom(n)
	}
	if o := parsed.Get("old"); o.IsObject() {
		change.Old = bookmarkFrom(o)
	}
	if change.EventType == "" {
		return models.Change{}, errors.New("missing eventType")
	}
	return change, nil
}

// decodeBookmark reports false unless raw is a JSON object.
func decodeBookmark(raw []byte) (*models.Bookmark, bool) {
	if !gjson.ValidBytes(raw) {
		return nil, false
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, false
	}
	return bookmarkFrom(parsed), true
}

func bookmarkFrom(r gjson.Result) *models.Bookmark {
	return &models.Bookmark{
		ID:        r.Get("id").Uint(),
		Title:     r.Get("title").String(),
		URL:       r.Get("url").String(),
		UserID:    r.Get("user_id").Uint(),
		CreatedAt: r.Get("created_at").Time(),
	}
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}
