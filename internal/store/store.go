// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/upanishadai/tutor-server/internal/domain"
)

// Repository defines the interface for persisting student, feedback,
// and response data.
type Repository interface {
	// GetStudent retrieves a student by their student ID.
	GetStudent(ctx context.Context, studentID string) (*domain.Student, error)

	// UpsertStudent creates or updates a student record.
	UpsertStudent(ctx context.Context, student *domain.Student) error

	// UpdateLastSeen updates the last_seen_at timestamp for a student.
	UpdateLastSeen(ctx context.Context, studentID string, lastSeen time.Time) error

	// SaveFeedback records a helpfulness rating and returns its row ID.
	SaveFeedback(ctx context.Context, fb domain.Feedback) (int64, error)

	// SaveResponse records a completed teacher turn and returns its row ID.
	SaveResponse(ctx context.Context, rec domain.ResponseRecord) (int64, error)

	// RecentResponses lists the newest recorded turns for a session,
	// most recent first.
	RecentResponses(ctx context.Context, sessionID string, limit int) ([]*domain.ResponseRecord, error)

	// FeedbackForSession lists recorded feedback for a session, most
	// recent first.
	FeedbackForSession(ctx context.Context, sessionID string, limit int) ([]*domain.Feedback, error)

	// Ping verifies database connectivity and returns an error if the
	// database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
