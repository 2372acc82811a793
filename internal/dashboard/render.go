package dashboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

const (
	Title      = "Smart Bookmarks"
	EmptyState = "No bookmarks found."
	EmptyHint  = "Add your first bookmark above!"
)

// Render writes the page: a header greeting the user followed by the list, newest first.
func Render(w io.Writer, email string, items []models.Bookmark) error {
	var b strings.Builder

	b.WriteString(Title + "\n")
	fmt.Fprintf(&b, "Welcome, %s\n\n", email)

	if len(items) == 0 {
		b.WriteString(EmptyState + "\n")
		b.WriteString(EmptyHint + "\n")
	}
	for _, item := range items {
		label := fmt.Sprintf("[%d] ", item.ID)
		fmt.Fprintf(&b, "%s%s\n", label, item.Title)
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat(" ", len(label)), item.URL)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
