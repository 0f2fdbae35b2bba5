package domain

import "time"

// AuditLog records every request handled by the API.
type AuditLog struct {
	ID        int64     `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Action    string    `json:"action"     db:"action"`
	Path      string    `json:"path"       db:"path"`
	Details   string    `json:"details"    db:"details"` // JSON blob
	IP        string    `json:"ip"         db:"ip"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
