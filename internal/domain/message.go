package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// Message is immutable once stored. Ordering is (CreatedAt, ID).
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Type           MessageType
	CreatedAt      time.Time

	Sender *UserSummary
}

// NormalizeMessage trims and validates content and defaults the type to text.
func NormalizeMessage(content string, typ MessageType, maxLen int) (string, MessageType, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", ErrEmptyMessage
	}
	if maxLen > 0 && utf8.RuneCountInString(content) > maxLen {
		return "", "", ErrMessageTooLong
	}
	if typ == "" {
		typ = MessageText
	}
	if !typ.Valid() {
		return "", "", ErrInvalidInput
	}
	return content, typ, nil
}
