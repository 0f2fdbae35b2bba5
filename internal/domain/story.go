package domain

import "time"

// Story is a free-text document uploaded by a user. Its content is
// immutable once chunked; replacing or deleting a story invalidates
// the owner's search index.
type Story struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Title     string    `json:"title"      db:"title"`
	Content   string    `json:"content"    db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
