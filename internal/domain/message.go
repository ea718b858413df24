package domain

import (
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderStudent Sender = "student"
	SenderTeacher Sender = "teacher"
)

// Message is a single entry in a session's conversation log.
// A teacher message grows incrementally while a response is streaming;
// its Complete flag transitions false to true exactly once.
type Message struct {
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Complete  bool      `json:"is_complete"`
}
