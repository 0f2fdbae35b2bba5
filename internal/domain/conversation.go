package domain

import "time"

// Conversation is one persisted question/answer exchange. Records are
// append-only and never mutated.
type Conversation struct {
	ID        int64     `json:"id"         db:"id"`
	UserID    string    `json:"-"          db:"user_id"`
	Question  string    `json:"question"   db:"question"`
	Answer    string    `json:"answer"     db:"answer"`
	Sources   []string  `json:"sources"    db:"sources"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Answer is the response returned to the caller of Ask. Confidence is
// derived from the top search hit, clamped to [0, 1]; it is 0 when the
// user has no indexed chunks.
type Answer struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}
