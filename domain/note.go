package domain

import "github.com/google/uuid"

// Note is a single piece of stored user content.
type Note struct {
	ID           uuid.UUID `json:"id"`
	Content      string    `json:"content"`
	Confidential bool      `json:"confidential"`
}

// CreateNoteInput carries the client supplied fields of a new note. The
// identifier is always assigned by the server.
type CreateNoteInput struct {
	Content      string `json:"content"`
	Confidential bool   `json:"confidential"`
}
