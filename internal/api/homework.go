package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/upanishadai/tutor-server/internal/agent"
	"github.com/upanishadai/tutor-server/internal/classify"
	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/identity"
	"github.com/upanishadai/tutor-server/internal/prompt"
	"github.com/upanishadai/tutor-server/internal/strategy"
)

// maxQuestionLength bounds the accepted question size on the REST path.
const maxQuestionLength = 8000

// HomeworkHandler handles the non-streaming homework endpoints.
type HomeworkHandler struct {
	*Handler
	agents     *agent.Registry
	classifier *classify.Classifier
}

// NewHomeworkHandler creates a new homework handler.
func NewHomeworkHandler(base *Handler, agents *agent.Registry, classifier *classify.Classifier) *HomeworkHandler {
	return &HomeworkHandler{
		Handler:    base,
		agents:     agents,
		classifier: classifier,
	}
}

// RegisterRoutes registers homework routes.
func (h *HomeworkHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/health", h.Health)
		r.Post("/homework/analyze", h.Analyze)
		r.Get("/homework/responses", h.RecentResponses)
		r.Get("/homework/feedback", h.SessionFeedback)
	})
}

type analyzeRequest struct {
	Content       string `json:"content"`
	SubjectID     int    `json:"subject_id,omitempty"`
	StudentAge    int    `json:"student_age,omitempty"`
	StudentLevel  int    `json:"student_level,omitempty"`
	LearningStyle string `json:"learning_style,omitempty"`
}

type analyzeResponse struct {
	Content          string            `json:"content"`
	Agent            string            `json:"created_by_agent"`
	Subject          domain.Subject    `json:"subject"`
	Strategy         strategy.Kind     `json:"strategy"`
	ExplanationLevel int               `json:"explanation_level"`
	Resources        []domain.Resource `json:"additional_resources,omitempty"`
}

// GetMe returns the current student's information.
func (h *HomeworkHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	studentID := identity.StudentIDFromContext(r.Context())
	if studentID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	student, err := h.repo.GetStudent(r.Context(), studentID)
	if err != nil || student == nil {
		Error(w, http.StatusUnauthorized, "student not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"student_id":   student.StudentID,
		"username":     student.Username,
		"last_seen_at": student.LastSeenAt.Unix(),
	})
}

// Health reports server and database status.
func (h *HomeworkHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("health check database ping failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "unreachable",
		})
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}

// Analyze runs one atomic homework analysis: subject resolution,
// strategy selection, and a full non-streamed answer.
func (h *HomeworkHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	studentID := identity.StudentIDFromContext(r.Context())

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxQuestionLength {
		Error(w, http.StatusRequestEntityTooLarge, "question too long")
		return
	}

	profile := domain.StudentProfile{
		Age:           req.StudentAge,
		Level:         req.StudentLevel,
		LearningStyle: req.LearningStyle,
	}

	subject, err := h.resolveSubject(r.Context(), req)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ag, err := h.agents.ForSubject(subject)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	out := strategy.Select(strategy.SignalsFor(profile, req.Content))
	actx := agent.Context{
		Strategy: out,
		Persona:  prompt.PersonaForStrategy(out.Kind),
		Profile:  profile,
	}

	answer, err := ag.Produce(r.Context(), req.Content, actx)
	if err != nil {
		slog.Error("homework analysis failed", "error", err,
			"student_id", studentID, "subject", subject)
		Error(w, http.StatusInternalServerError, "analysis unavailable, try again shortly")
		return
	}

	slog.Info("homework analyzed",
		"student_id", studentID,
		"subject", subject,
		"agent", ag.Name(),
		"strategy", out.Kind,
	)

	JSON(w, http.StatusOK, analyzeResponse{
		Content:          answer,
		Agent:            ag.Name(),
		Subject:          subject,
		Strategy:         out.Kind,
		ExplanationLevel: agent.ExplanationLevel(req.StudentAge),
		Resources:        ag.Resources(),
	})
}

// RecentResponses lists the latest recorded turns for the caller's
// conversation session.
func (h *HomeworkHandler) RecentResponses(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	limit := queryLimit(r, 20)

	records, err := h.repo.RecentResponses(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("recent responses query failed", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "could not load responses")
		return
	}
	if records == nil {
		records = []*domain.ResponseRecord{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"responses":  records,
	})
}

// SessionFeedback lists recorded feedback for the caller's session.
func (h *HomeworkHandler) SessionFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	limit := queryLimit(r, 20)

	items, err := h.repo.FeedbackForSession(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("session feedback query failed", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "could not load feedback")
		return
	}
	if items == nil {
		items = []*domain.Feedback{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"feedback":   items,
	})
}

func (h *HomeworkHandler) resolveSubject(ctx context.Context, req analyzeRequest) (domain.Subject, error) {
	if req.SubjectID > 0 {
		return domain.SubjectFromID(req.SubjectID)
	}
	return h.classifier.Classify(ctx, req.Content), nil
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 100 {
		return fallback
	}
	return n
}
