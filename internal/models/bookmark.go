package models

import (
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

type (
	// Bookmark is a single saved link. ID and CreatedAt are assigned by the backend.
	Bookmark struct {
		ID        uint64    `json:"id"`
		Title     string    `json:"title"`
		URL       string    `json:"url"`
		UserID    uint64    `json:"user_id"`
		CreatedAt time.Time `json:"created_at"`
	}

	// NewBookmark is the payload of an insert request.
	NewBookmark struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		UserID uint64 `json:"user_id"`
	}

	Identity struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
	}

	// Change describes a row-level event on the bookmarks table.
	// New is set for inserts and updates, Old for deletes and updates.
	Change struct {
		EventType EventType `json:"eventType"`
		New       *Bookmark `json:"new,omitempty"`
		Old       *Bookmark `json:"old,omitempty"`
	}
)

// Owner returns the user the changed row belongs to.
func (c Change) Owner() uint64 {
	if c.New != nil {
		return c.New.UserID
	}
	if c.Old != nil {
		return c.Old.UserID
	}
	return 0
}
