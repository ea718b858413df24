package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/upanishadai/tutor-server/internal/agent"
	"github.com/upanishadai/tutor-server/internal/classify"
	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/prompt"
	"github.com/upanishadai/tutor-server/internal/provider"
	"github.com/upanishadai/tutor-server/internal/session"
	"github.com/upanishadai/tutor-server/internal/strategy"
)

// ErrGenerationInFlight is returned when an ask arrives while the
// session is already generating a response.
var ErrGenerationInFlight = errors.New("a response is already being generated for this session")

// fallbackText is streamed when the completion provider fails mid-turn.
const fallbackText = "I'm sorry, I'm having trouble thinking that through right now. " +
	"Could you ask me again in a moment?"

// DefaultStreamDelay paces fragment delivery so text appears at a
// readable rate on the client.
const DefaultStreamDelay = 30 * time.Millisecond

// Recorder persists completed turns and feedback. Implemented by the
// SQLite repository; tests supply fakes.
type Recorder interface {
	SaveResponse(ctx context.Context, rec domain.ResponseRecord) (int64, error)
	SaveFeedback(ctx context.Context, fb domain.Feedback) (int64, error)
}

// AskRequest carries one inbound student question.
type AskRequest struct {
	StudentID string
	Content   string
	SubjectID int
	Profile   domain.StudentProfile
}

// Orchestrator drives one teacher turn per ask: subject resolution,
// strategy selection, prompt assembly, streamed generation, and
// delivery through the connection registry.
type Orchestrator struct {
	sessions   *session.Store
	registry   *Registry
	classifier *classify.Classifier
	agents     *agent.Registry
	provider   provider.CompletionProvider
	recorder   Recorder
	transcript TranscriptLogger
	log        *slog.Logger

	streamDelay  time.Duration
	historyLimit int

	mu       sync.Mutex
	inflight map[string]bool
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Sessions   *session.Store
	Registry   *Registry
	Classifier *classify.Classifier
	Agents     *agent.Registry
	Provider   provider.CompletionProvider
	Recorder   Recorder
	Transcript TranscriptLogger
	Logger     *slog.Logger

	// StreamDelay is the pause between delivered fragments. Zero means
	// DefaultStreamDelay; negative disables pacing.
	StreamDelay time.Duration

	// HistoryLimit bounds the prior messages fed into the prompt.
	HistoryLimit int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	delay := cfg.StreamDelay
	if delay == 0 {
		delay = DefaultStreamDelay
	}
	if delay < 0 {
		delay = 0
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = prompt.HistoryWindow
	}
	transcript := cfg.Transcript
	if transcript == nil {
		transcript = NopTranscript{}
	}
	return &Orchestrator{
		sessions:     cfg.Sessions,
		registry:     cfg.Registry,
		classifier:   cfg.Classifier,
		agents:       cfg.Agents,
		provider:     cfg.Provider,
		recorder:     cfg.Recorder,
		transcript:   transcript,
		log:          cfg.Logger,
		streamDelay:  delay,
		historyLimit: limit,
		inflight:     make(map[string]bool),
	}
}

// Ask runs one full teacher turn for the session. At most one turn per
// session may run at a time; a second concurrent ask is rejected with
// ErrGenerationInFlight before any state changes.
func (o *Orchestrator) Ask(ctx context.Context, sessionID string, req AskRequest) error {
	if !o.acquire(sessionID) {
		return ErrGenerationInFlight
	}
	defer o.release(sessionID)

	o.sessions.Ensure(sessionID, req.Profile)
	profile := o.sessions.Profile(sessionID)

	// Snapshot history before recording the new question so the prompt
	// treats the question and the context window as distinct inputs.
	history := o.sessions.History(sessionID, o.historyLimit)
	o.sessions.AppendStudent(sessionID, req.Content)
	o.transcript.Record(TranscriptEntry{
		StudentID: req.StudentID,
		SessionID: sessionID,
		Sender:    string(domain.SenderStudent),
		Content:   req.Content,
	})

	subject, err := o.resolveSubject(ctx, req)
	if err != nil {
		o.sendError(ctx, sessionID, err.Error())
		return err
	}

	ag, err := o.agents.ForSubject(subject)
	if err != nil {
		o.sendError(ctx, sessionID, err.Error())
		return err
	}

	out := strategy.Select(strategy.SignalsFor(profile, req.Content))
	persona := prompt.PersonaForStrategy(out.Kind)
	promptText := ag.BuildPrompt(req.Content, agent.Context{
		Strategy: out,
		History:  history,
		Persona:  persona,
		Profile:  profile,
	})

	o.log.Info("starting teacher turn",
		"session_id", sessionID,
		"subject", subject,
		"agent", ag.Name(),
		"strategy", out.Kind,
	)

	if err := o.sessions.StartTeacher(sessionID); err != nil {
		o.sendError(ctx, sessionID, "the teacher is still answering")
		return err
	}

	start := NewControlFrame(ActionStartResponse)
	start.SessionID = sessionID
	o.registry.SendControl(ctx, sessionID, start)

	content, failed := o.streamResponse(ctx, sessionID, promptText)

	o.sessions.CompleteTeacher(sessionID)

	end := NewControlFrame(ActionEndResponse)
	end.SessionID = sessionID
	o.registry.SendControl(ctx, sessionID, end)

	o.transcript.Record(TranscriptEntry{
		StudentID: req.StudentID,
		SessionID: sessionID,
		Sender:    string(domain.SenderTeacher),
		Content:   content,
	})
	o.persistResponse(domain.ResponseRecord{
		SessionID: sessionID,
		Agent:     ag.Name(),
		Subject:   subject,
		Strategy:  string(out.Kind),
		Content:   content,
		Failed:    failed,
	})
	return nil
}

// Feedback records a helpfulness rating and acknowledges it on the
// session's connection. Feedback never touches the conversation log.
func (o *Orchestrator) Feedback(ctx context.Context, sessionID string, fb domain.Feedback) error {
	fb.SessionID = sessionID
	if o.recorder != nil {
		if _, err := o.recorder.SaveFeedback(ctx, fb); err != nil {
			return err
		}
	}
	ack := NewControlFrame(ActionFeedbackReceived)
	ack.SessionID = sessionID
	o.registry.SendControl(ctx, sessionID, ack)
	return nil
}

// streamResponse delivers provider fragments in order, pacing each one,
// and returns the accumulated content plus whether a fallback was
// served. A provider failure or an entirely empty stream turns the
// remainder of the turn into the fallback text streamed word by word,
// unless the request context is gone.
func (o *Orchestrator) streamResponse(ctx context.Context, sessionID, promptText string) (string, bool) {
	var buf strings.Builder
	connected := true

	for fragment, err := range o.provider.CompleteStream(ctx, promptText) {
		if err != nil {
			o.log.Warn("provider stream failed, serving fallback",
				"session_id", sessionID, "error", err)
			if ctx.Err() != nil {
				return buf.String(), true
			}
			o.streamFallback(ctx, sessionID, &buf, connected)
			return buf.String(), true
		}
		if fragment == "" {
			continue
		}
		buf.WriteString(fragment)
		connected = o.deliver(ctx, sessionID, fragment, connected)
	}

	// A stream that ends cleanly without producing any text is a
	// provider failure too; the student must never get a silent turn.
	if buf.Len() == 0 {
		o.log.Warn("provider stream produced no content, serving fallback",
			"session_id", sessionID)
		if ctx.Err() != nil {
			return "", true
		}
		o.streamFallback(ctx, sessionID, &buf, connected)
		return buf.String(), true
	}
	return buf.String(), false
}

func (o *Orchestrator) streamFallback(ctx context.Context, sessionID string, buf *strings.Builder, connected bool) {
	for _, word := range fragmentWords(fallbackText) {
		buf.WriteString(word)
		connected = o.deliver(ctx, sessionID, word, connected)
	}
}

// deliver appends one fragment to the session log and, while a client
// is attached, sends it and paces. A detached client stops sends and
// pacing but never truncates the log.
func (o *Orchestrator) deliver(ctx context.Context, sessionID, fragment string, connected bool) bool {
	o.sessions.AppendTeacherChunk(sessionID, fragment)
	if !connected {
		return false
	}
	if !o.registry.SendText(ctx, sessionID, fragment) {
		return false
	}
	if o.streamDelay > 0 {
		select {
		case <-time.After(o.streamDelay):
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (o *Orchestrator) resolveSubject(ctx context.Context, req AskRequest) (domain.Subject, error) {
	if req.SubjectID > 0 {
		return domain.SubjectFromID(req.SubjectID)
	}
	if hint, err := domain.ParseSubject(req.Profile.SubjectHint); err == nil {
		return hint, nil
	}
	return o.classifier.Classify(ctx, req.Content), nil
}

func (o *Orchestrator) sendError(ctx context.Context, sessionID, message string) {
	frame := errorFrame(message)
	frame.SessionID = sessionID
	o.registry.SendControl(ctx, sessionID, frame)
}

// persistResponse records the turn off the streaming path. A storage
// failure is logged, never surfaced to the client.
func (o *Orchestrator) persistResponse(rec domain.ResponseRecord) {
	if o.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := o.recorder.SaveResponse(ctx, rec); err != nil {
			o.log.Warn("response record save failed",
				"session_id", rec.SessionID, "error", err)
		}
	}()
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[sessionID] {
		return false
	}
	o.inflight[sessionID] = true
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.inflight, sessionID)
	o.mu.Unlock()
}

// fragmentWords splits text into word-sized fragments whose
// concatenation reproduces text exactly.
func fragmentWords(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == ' ' || r == '\n' {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
