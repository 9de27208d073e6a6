package store

import "time"

const (
	StatusProcessed    = "processed"
	StatusUserModified = "user_modified"
)

// Note is the persisted correction record, one per unique transcript text.
// MessageHash is the idempotency key joining the extension and the backend.
type Note struct {
	ID               string    `json:"id"`
	MessageHash      string    `json:"messageHash"`
	SessionID        string    `json:"sessionId"`
	TextContent      string    `json:"textContent"`
	Speaker          string    `json:"speaker,omitempty"`
	Duration         string    `json:"duration,omitempty"`
	SuggestedContent string    `json:"suggestedContent"`
	Explanation      string    `json:"explanation"`
	Status           string    `json:"status"`
	IsBookmarked     bool      `json:"isBookmarked"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NoteFilter narrows ListNotes; zero-valued fields are not applied.
type NoteFilter struct {
	SessionID    string
	IsBookmarked *bool
}
