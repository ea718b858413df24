// Package domain contains core domain types for the tutoring server.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Subject identifies a homework subject handled by a teaching agent.
type Subject string

const (
	SubjectMathematics Subject = "mathematics"
	SubjectEnglish     Subject = "english"
)

// DefaultSubject is used when classification is ambiguous or fails.
const DefaultSubject = SubjectMathematics

// ErrUnsupportedSubject indicates a caller-specified subject outside the known set.
var ErrUnsupportedSubject = errors.New("unsupported subject")

// Subjects returns the closed set of known subjects.
func Subjects() []Subject {
	return []Subject{SubjectMathematics, SubjectEnglish}
}

// ParseSubject resolves a caller-supplied subject name to a known Subject.
func ParseSubject(name string) (Subject, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mathematics", "math":
		return SubjectMathematics, nil
	case "english":
		return SubjectEnglish, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSubject, name)
	}
}

// SubjectFromID maps the numeric subject identifiers used by the
// homework API to a Subject. ID 0 means "not supplied".
func SubjectFromID(id int) (Subject, error) {
	switch id {
	case 1:
		return SubjectMathematics, nil
	case 2:
		return SubjectEnglish, nil
	default:
		return "", fmt.Errorf("%w: subject_id %d", ErrUnsupportedSubject, id)
	}
}
