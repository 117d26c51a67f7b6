package domain

import (
	"strings"
	"time"
)

const MaxMessageLen = 2000

type MessageID string

// Message is an append-only chat line in a broadcast's room.
type Message struct {
	ID        MessageID `json:"id"`
	UserID    UserID    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidateText rejects empty or whitespace-only messages.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if len(text) > MaxMessageLen {
		return ErrFieldTooLong
	}
	return nil
}
