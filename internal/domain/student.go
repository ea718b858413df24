package domain

import (
	"time"
)

// Student represents an anonymous per-device student identity.
type Student struct {
	StudentID  string    `json:"student_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
