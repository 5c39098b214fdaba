package models

import "time"

// Note is a free-form text document. Title is derived from the first
// line of Content and recomputed on every write. Collaborators holds
// the emails of users the note has been shared with.
type Note struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Collaborators []string  `json:"collaborators,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
