package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/upanishadai/tutor-server/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "tutor.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return repo
}

func TestStudentRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetStudent(ctx, "anon_missing")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown student, got %+v", got)
	}

	now := time.Now().Truncate(time.Second)
	student := &domain.Student{
		StudentID:  "anon_abc123",
		Username:   "anon-abc123",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}

	got, err = repo.GetStudent(ctx, "anon_abc123")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if got == nil {
		t.Fatal("expected student, got nil")
	}
	if got.Username != "anon-abc123" {
		t.Errorf("username = %q, want %q", got.Username, "anon-abc123")
	}
	if !got.LastSeenAt.Equal(now) {
		t.Errorf("last_seen_at = %v, want %v", got.LastSeenAt, now)
	}
}

func TestUpsertStudentIsIdempotent(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	student := &domain.Student{
		StudentID:  "anon_dup",
		Username:   "anon-dup",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	later := now.Add(time.Hour)
	student.LastSeenAt = later
	student.UpdatedAt = later
	if err := repo.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetStudent(ctx, "anon_dup")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("last_seen_at = %v, want %v", got.LastSeenAt, later)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at changed on upsert: %v, want %v", got.CreatedAt, now)
	}
}

func TestUpdateLastSeen(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	student := &domain.Student{
		StudentID:  "anon_seen",
		Username:   "anon-seen",
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.UpsertStudent(ctx, student); err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}

	later := now.Add(10 * time.Minute)
	if err := repo.UpdateLastSeen(ctx, "anon_seen", later); err != nil {
		t.Fatalf("UpdateLastSeen: %v", err)
	}

	got, err := repo.GetStudent(ctx, "anon_seen")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("last_seen_at = %v, want %v", got.LastSeenAt, later)
	}
}

func TestFeedbackForSession(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		fb := domain.Feedback{
			StudentID: "anon_fb",
			SessionID: "sess-1",
			MessageID: "msg-" + string(rune('a'+i)),
			IsHelpful: i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback: %v", err)
		}
	}
	if _, err := repo.SaveFeedback(ctx, domain.Feedback{
		StudentID: "anon_fb", SessionID: "sess-other", MessageID: "msg-x",
	}); err != nil {
		t.Fatalf("SaveFeedback other session: %v", err)
	}

	items, err := repo.FeedbackForSession(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("FeedbackForSession: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d feedback rows, want 3", len(items))
	}
	if items[0].MessageID != "msg-c" {
		t.Errorf("newest first: got %q, want %q", items[0].MessageID, "msg-c")
	}
	if !items[0].IsHelpful {
		t.Error("msg-c should be helpful")
	}
}

func TestRecentResponsesOrderAndLimit(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		rec := domain.ResponseRecord{
			SessionID: "sess-r",
			Agent:     "math_teacher",
			Subject:   domain.SubjectMathematics,
			Strategy:  "socratic",
			Content:   "answer " + string(rune('0'+i)),
			Failed:    i == 4,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := repo.SaveResponse(ctx, rec); err != nil {
			t.Fatalf("SaveResponse: %v", err)
		}
	}

	records, err := repo.RecentResponses(ctx, "sess-r", 3)
	if err != nil {
		t.Fatalf("RecentResponses: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Content != "answer 4" {
		t.Errorf("newest first: got %q, want %q", records[0].Content, "answer 4")
	}
	if !records[0].Failed {
		t.Error("newest record should carry the failed flag")
	}
	if records[0].Subject != domain.SubjectMathematics {
		t.Errorf("subject = %q, want %q", records[0].Subject, domain.SubjectMathematics)
	}
}

func TestRecentResponsesUnknownSession(t *testing.T) {
	t.Parallel()
	repo := newTestStore(t)

	records, err := repo.RecentResponses(context.Background(), "no-such-session", 10)
	if err != nil {
		t.Fatalf("RecentResponses: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}
