// Package conversation implements the session-scoped streaming
// conversation pipeline: connection registry, per-message orchestration,
// and the WebSocket transport.
package conversation

import (
	"time"
)

// Control frame actions sent to the client. Content fragments are sent
// as raw text frames, outside this envelope, so an empty fragment can
// never be confused with end of turn.
const (
	ActionConnectionEstablished = "connection_established"
	ActionStartResponse         = "start_response"
	ActionEndResponse           = "end_response"
	ActionFeedbackReceived      = "feedback_received"
	ActionError                 = "error"
)

// Inbound actions accepted from the client.
const (
	actionAsk      = "ask"
	actionFeedback = "feedback"
)

// ControlFrame is the structured envelope for non-content messages.
type ControlFrame struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewControlFrame creates a control frame stamped with the current time.
func NewControlFrame(action string) ControlFrame {
	return ControlFrame{
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func errorFrame(message string) ControlFrame {
	f := NewControlFrame(ActionError)
	f.Message = message
	return f
}

// inboundMessage is the structured record read from the client.
type inboundMessage struct {
	Action        string           `json:"action"`
	Content       string           `json:"content,omitempty"`
	SubjectID     int              `json:"subject_id,omitempty"`
	StudentAge    int              `json:"student_age,omitempty"`
	StudentLevel  int              `json:"student_level,omitempty"`
	LearningStyle string           `json:"learning_style,omitempty"`
	Feedback      *feedbackPayload `json:"feedback,omitempty"`
}

type feedbackPayload struct {
	MessageID string `json:"message_id"`
	IsHelpful bool   `json:"is_helpful"`
}
