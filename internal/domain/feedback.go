package domain

import (
	"time"
)

// Feedback is a student's helpfulness rating for a delivered response.
// Feedback never enters the conversation log and never influences
// strategy selection; it is recorded for later analysis only.
type Feedback struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"student_id"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	IsHelpful bool      `json:"is_helpful"`
	CreatedAt time.Time `json:"created_at"`
}

// ResponseRecord is the persisted telemetry for one completed teacher
// turn: which agent answered, under which strategy, and whether the
// provider failed and a fallback was served.
type ResponseRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Agent     string    `json:"agent"`
	Subject   Subject   `json:"subject"`
	Strategy  string    `json:"strategy"`
	Content   string    `json:"content"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// Resource is a supplementary learning resource suggested alongside a
// homework analysis.
type Resource struct {
	Title string `json:"title"`
	Kind  string `json:"kind"`
	URL   string `json:"url,omitempty"`
}
