package domain

import (
	"time"
)

// DefaultConfusion is the mid-scale confusion score assumed when a
// session has no observed signal.
const DefaultConfusion = 0.5

// StudentProfile holds the per-session student metadata used for
// strategy selection and prompt assembly.
type StudentProfile struct {
	Age           int     `json:"age,omitempty"`
	Level         int     `json:"level,omitempty"`
	LearningStyle string  `json:"learning_style,omitempty"`
	SubjectHint   string  `json:"subject_hint,omitempty"`
	Confusion     float64 `json:"confusion,omitempty"`
}

// ConfusionOrDefault returns the profile's confusion score, falling
// back to the mid-scale default when unset.
func (p StudentProfile) ConfusionOrDefault() float64 {
	if p.Confusion <= 0 {
		return DefaultConfusion
	}
	return p.Confusion
}

// Merge overlays any set fields of other onto p and returns the result.
func (p StudentProfile) Merge(other StudentProfile) StudentProfile {
	if other.Age > 0 {
		p.Age = other.Age
	}
	if other.Level > 0 {
		p.Level = other.Level
	}
	if other.LearningStyle != "" {
		p.LearningStyle = other.LearningStyle
	}
	if other.SubjectHint != "" {
		p.SubjectHint = other.SubjectHint
	}
	if other.Confusion > 0 {
		p.Confusion = other.Confusion
	}
	return p
}

// Session is a caller-identified, process-lifetime conversational
// context. The message log is append-only and ordered by arrival.
type Session struct {
	ID         string
	Messages   []Message
	Profile    StudentProfile
	CreatedAt  time.Time
	LastActive time.Time
}
