package conversation

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileTranscriptWritesNDJSON(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewFileTranscript(dir, discardLogger())
	if err != nil {
		t.Fatalf("NewFileTranscript: %v", err)
	}

	tr.Record(TranscriptEntry{
		StudentID: "anon_abc",
		SessionID: "sess-1",
		Sender:    "student",
		Content:   "What is 2+2?",
	})
	tr.Record(TranscriptEntry{
		StudentID: "anon_abc",
		SessionID: "sess-1",
		Sender:    "teacher",
		Content:   "Let's count together.",
	})
	tr.Close()

	path := filepath.Join(dir, "anon_abc", "sess-1.ndjson")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer f.Close()

	var entries []TranscriptEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e TranscriptEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Sender != "student" || entries[1].Sender != "teacher" {
		t.Errorf("entries out of order: %v", entries)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped on record")
	}
}

func TestFileTranscriptSanitizesIdentifiers(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewFileTranscript(dir, discardLogger())
	if err != nil {
		t.Fatalf("NewFileTranscript: %v", err)
	}

	tr.Record(TranscriptEntry{
		StudentID: "../escape",
		SessionID: "sess/../../etc",
		Sender:    "student",
		Content:   "hi",
	})
	tr.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "*", "*.ndjson"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d transcript files under base dir, want 1", len(matches))
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "escape")); !os.IsNotExist(err) {
		t.Error("identifier escaped the transcript directory")
	}
}

func TestSanitizePathComponent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"anon_abc123", "anon_abc123"},
		{"../evil", ".._evil"},
		{"a/b", "a_b"},
		{"", "unknown"},
	}
	for _, tc := range cases {
		if got := sanitizePathComponent(tc.in); got != tc.want {
			t.Errorf("sanitizePathComponent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNopTranscript(t *testing.T) {
	var tr TranscriptLogger = NopTranscript{}
	tr.Record(TranscriptEntry{Content: "dropped"})
	tr.Close()
}
