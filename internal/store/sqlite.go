package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS students (
		student_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_last_seen ON students(last_seen_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		is_helpful INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_session ON feedback(session_id, created_at);

	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		subject TEXT NOT NULL,
		strategy TEXT NOT NULL,
		content TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_responses_session ON responses(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetStudent retrieves a student by their student ID.
func (s *SQLiteStore) GetStudent(ctx context.Context, studentID string) (*domain.Student, error) {
	query := `
		SELECT student_id, username, last_seen_at, created_at, updated_at
		FROM students WHERE student_id = ?`

	row := s.db.QueryRowContext(ctx, query, studentID)

	var student domain.Student
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&student.StudentID, &student.Username,
		&lastSeen, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan student row: %w", err)
	}

	student.LastSeenAt = time.Unix(lastSeen, 0)
	student.CreatedAt = time.Unix(createdAt, 0)
	student.UpdatedAt = time.Unix(updatedAt, 0)

	return &student, nil
}

// UpsertStudent creates or updates a student record.
func (s *SQLiteStore) UpsertStudent(ctx context.Context, student *domain.Student) error {
	query := `
	INSERT INTO students (student_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(student_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		student.StudentID, student.Username,
		student.LastSeenAt.Unix(), student.CreatedAt.Unix(), student.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a student.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, studentID string, lastSeen time.Time) error {
	query := `UPDATE students SET last_seen_at = ?, updated_at = ? WHERE student_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), studentID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "student_id", studentID)
	}

	return nil
}

// execInsertWithRetry runs an insert, retrying with exponential backoff
// on SQLite concurrency errors, and returns the new row ID.
func (s *SQLiteStore) execInsertWithRetry(ctx context.Context, query string, args ...any) (int64, error) {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return result.LastInsertId()
		}
		lastErr = err

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("insert hit SQLite conflict, retrying",
				"attempt", i+1, "delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		break
	}
	return 0, lastErr
}

// SaveFeedback records a helpfulness rating.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb domain.Feedback) (int64, error) {
	created := fb.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	query := `
	INSERT INTO feedback (student_id, session_id, message_id, is_helpful, created_at)
	VALUES (?, ?, ?, ?, ?)`

	id, err := s.execInsertWithRetry(ctx, query,
		fb.StudentID, fb.SessionID, fb.MessageID, fb.IsHelpful, created.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("save feedback: %w", err)
	}
	return id, nil
}

// SaveResponse records a completed teacher turn.
func (s *SQLiteStore) SaveResponse(ctx context.Context, rec domain.ResponseRecord) (int64, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	query := `
	INSERT INTO responses (session_id, agent, subject, strategy, content, failed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := s.execInsertWithRetry(ctx, query,
		rec.SessionID, rec.Agent, string(rec.Subject), rec.Strategy,
		rec.Content, rec.Failed, created.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("save response: %w", err)
	}
	return id, nil
}

// RecentResponses lists the newest recorded turns for a session.
func (s *SQLiteStore) RecentResponses(ctx context.Context, sessionID string, limit int) ([]*domain.ResponseRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, session_id, agent, subject, strategy, content, failed, created_at
		FROM responses WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent responses: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close responses rows", "error", closeErr)
		}
	}()

	var records []*domain.ResponseRecord
	for rows.Next() {
		var rec domain.ResponseRecord
		var subject string
		var createdAt int64

		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.Agent, &subject,
			&rec.Strategy, &rec.Content, &rec.Failed, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan response row: %w", err)
		}

		rec.Subject = domain.Subject(subject)
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}

	return records, nil
}

// FeedbackForSession lists recorded feedback for a session.
func (s *SQLiteStore) FeedbackForSession(ctx context.Context, sessionID string, limit int) ([]*domain.Feedback, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, student_id, session_id, message_id, is_helpful, created_at
		FROM feedback WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session feedback: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close feedback rows", "error", closeErr)
		}
	}()

	var items []*domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		var createdAt int64

		if err := rows.Scan(
			&fb.ID, &fb.StudentID, &fb.SessionID,
			&fb.MessageID, &fb.IsHelpful, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}

		fb.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, &fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	return items, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
