package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

// BookmarkChanges streams the caller's bookmark changes as server-sent events.
// The stream ends when the client goes away or the hub closes the subscription.
func (s *HTTPServer) BookmarkChanges(c *fiber.Ctx) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	sub, err := s.hub.Subscribe(user.ID)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	keepAlive := s.keepAlive
	logger := s.logger
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		if err := writeComment(w, "subscribed"); err != nil {
			return
		}
		for {
			select {
			case change, ok := <-sub.Changes():
				if !ok {
					return
				}
				if err := writeEvent(w, change); err != nil {
					logger.Debugw("change stream closed", "owner", user.ID, "error", err)
					return
				}
			case <-ticker.C:
				if err := writeComment(w, "ping"); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, change models.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", strings.ToLower(string(change.EventType)), payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}
