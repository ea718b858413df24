package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/upanishadai/tutor-server/internal/domain"
	"github.com/upanishadai/tutor-server/internal/identity"
)

// WebSocketHandler upgrades /ws/conversation/{sessionID} requests and
// runs the inbound dispatch loop for the connection.
type WebSocketHandler struct {
	orchestrator *Orchestrator
	registry     *Registry
	limiter      *RateLimiter
	log          *slog.Logger

	allowedOrigin string
	isDev         bool
}

func NewWebSocketHandler(o *Orchestrator, reg *Registry, limiter *RateLimiter, allowedOrigin string, isDev bool, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		orchestrator:  o,
		registry:      reg,
		limiter:       limiter,
		log:           log,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsConn adapts websocket.Conn to ClientConn. Writes use
// context.Background() since the WebSocket library handles its own
// connection state; the request context only gates liveness. A mutex
// serializes writes because the orchestrator goroutine and the read
// loop both send frames.
type wsConn struct {
	conn *websocket.Conn
	ctx  context.Context
	mu   sync.Mutex
}

func (c *wsConn) WriteText(ctx context.Context, text string) error {
	return c.write(ctx, []byte(text))
}

func (c *wsConn) WriteControl(ctx context.Context, frame ControlFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.write(ctx, data)
}

func (c *wsConn) write(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(context.Background(), websocket.MessageText, data)
}

func (c *wsConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	studentID := identity.StudentIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	h.log.Info("conversation connection request",
		"student_id", studentID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			h.log.Debug("websocket close failed", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &wsConn{conn: ws, ctx: ctx}
	h.registry.Register(sessionID, conn)
	defer h.registry.Unregister(sessionID, conn)

	hello := NewControlFrame(ActionConnectionEstablished)
	hello.SessionID = sessionID
	if err := conn.WriteControl(ctx, hello); err != nil {
		h.log.Debug("hello frame write failed", "error", err, "session_id", sessionID)
		return
	}

	h.readLoop(ctx, conn, ws, studentID, sessionID)
	h.log.Info("conversation ended", "student_id", studentID, "session_id", sessionID)
}

// readLoop reads and dispatches inbound messages until the client
// disconnects. A malformed or unknown message produces an error frame
// and the loop continues.
func (h *WebSocketHandler) readLoop(ctx context.Context, conn *wsConn, ws *websocket.Conn, studentID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.log.Debug("websocket closed by client", "session_id", sessionID)
			} else {
				h.log.Warn("websocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(ctx, conn, sessionID, "malformed message")
			continue
		}

		switch msg.Action {
		case actionAsk:
			h.handleAsk(ctx, conn, studentID, sessionID, msg)
		case actionFeedback:
			h.handleFeedback(ctx, conn, studentID, sessionID, msg)
		default:
			h.sendError(ctx, conn, sessionID, "unknown action")
		}
	}
}

func (h *WebSocketHandler) handleAsk(ctx context.Context, conn *wsConn, studentID, sessionID string, msg inboundMessage) {
	if msg.Content == "" {
		h.sendError(ctx, conn, sessionID, "ask requires content")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(studentID) {
		h.sendError(ctx, conn, sessionID, "rate limit exceeded")
		return
	}

	req := AskRequest{
		StudentID: studentID,
		Content:   msg.Content,
		SubjectID: msg.SubjectID,
		Profile: domain.StudentProfile{
			Age:           msg.StudentAge,
			Level:         msg.StudentLevel,
			LearningStyle: msg.LearningStyle,
		},
	}

	// The turn runs concurrently with the read loop so the client can
	// disconnect or send feedback while fragments stream.
	go func() {
		if err := h.orchestrator.Ask(ctx, sessionID, req); err != nil {
			if errors.Is(err, ErrGenerationInFlight) {
				h.sendError(ctx, conn, sessionID, err.Error())
				return
			}
			h.log.Warn("ask failed", "error", err,
				"student_id", studentID, "session_id", sessionID)
		}
	}()
}

func (h *WebSocketHandler) handleFeedback(ctx context.Context, conn *wsConn, studentID, sessionID string, msg inboundMessage) {
	if msg.Feedback == nil {
		h.sendError(ctx, conn, sessionID, "feedback requires a payload")
		return
	}
	fb := domain.Feedback{
		StudentID: studentID,
		MessageID: msg.Feedback.MessageID,
		IsHelpful: msg.Feedback.IsHelpful,
	}
	if err := h.orchestrator.Feedback(ctx, sessionID, fb); err != nil {
		h.log.Warn("feedback save failed", "error", err,
			"student_id", studentID, "session_id", sessionID)
		h.sendError(ctx, conn, sessionID, "could not record feedback")
	}
}

func (h *WebSocketHandler) sendError(ctx context.Context, conn *wsConn, sessionID, message string) {
	frame := errorFrame(message)
	frame.SessionID = sessionID
	if err := conn.WriteControl(ctx, frame); err != nil {
		h.log.Debug("error frame write failed", "error", err, "session_id", sessionID)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.log.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
