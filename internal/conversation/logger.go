package conversation

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TranscriptEntry is one line of a session transcript.
type TranscriptEntry struct {
	Timestamp time.Time `json:"ts"`
	StudentID string    `json:"student_id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
}

// TranscriptLogger records completed conversation turns. Implementations
// must not block the streaming path.
type TranscriptLogger interface {
	Record(entry TranscriptEntry)
	Close()
}

// NopTranscript discards all entries. Used when transcript logging is
// disabled in config.
type NopTranscript struct{}

func (NopTranscript) Record(TranscriptEntry) {}
func (NopTranscript) Close()                 {}

// FileTranscript appends NDJSON lines under dir/<student>/<session>.ndjson.
// Entries are queued and written by a single background goroutine so a
// slow disk never stalls fragment delivery; on queue overflow entries
// are dropped and counted.
type FileTranscript struct {
	dir string
	log *slog.Logger

	queue chan TranscriptEntry
	done  chan struct{}

	mu      sync.Mutex
	dropped int
}

const transcriptQueueSize = 256

func NewFileTranscript(dir string, log *slog.Logger) (*FileTranscript, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	t := &FileTranscript{
		dir:   dir,
		log:   log,
		queue: make(chan TranscriptEntry, transcriptQueueSize),
		done:  make(chan struct{}),
	}
	go t.run()
	return t, nil
}

func (t *FileTranscript) Record(entry TranscriptEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	select {
	case t.queue <- entry:
	default:
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
	}
}

// Close drains the queue and stops the writer goroutine.
func (t *FileTranscript) Close() {
	close(t.queue)
	<-t.done

	t.mu.Lock()
	dropped := t.dropped
	t.mu.Unlock()
	if dropped > 0 {
		t.log.Warn("transcript entries dropped under load", "count", dropped)
	}
}

func (t *FileTranscript) run() {
	defer close(t.done)
	for entry := range t.queue {
		if err := t.write(entry); err != nil {
			t.log.Warn("transcript write failed",
				"session_id", entry.SessionID, "error", err)
		}
	}
}

func (t *FileTranscript) write(entry TranscriptEntry) error {
	student := entry.StudentID
	if student == "" {
		student = "anonymous"
	}
	dir := filepath.Join(t.dir, sanitizePathComponent(student))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, sanitizePathComponent(entry.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// sanitizePathComponent keeps caller-supplied identifiers from escaping
// the transcript directory.
func sanitizePathComponent(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_' || r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}
