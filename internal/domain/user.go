package domain

import "time"

// User represents a registered account. Each user is an isolated tenant:
// stories, chunks, and conversations are never visible across users.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"` // never serialized to JSON
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
