package ws

import (
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
)

// Event types exchanged over the socket.
const (
	TypeMessage    = "message"     // new message in the conversation
	TypeRead       = "read"        // a participant moved their read watermark
	TypeMessageAck = "message_ack" // sender-only confirmation of a stored message
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
}

func messagePayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    string(m.Type),
		CreatedAt:      m.CreatedAt,
	}
}

type ReadPayload struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

// SendPayload is what a client puts in an incoming "message" frame.
type SendPayload struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
}

// AckPayload lets the client drop its pending copy and dedupe the broadcast.
type AckPayload struct {
	ClientID string `json:"client_id,omitempty"`
	ID       string `json:"id"`
}

type ErrorPayload struct {
	Error    string `json:"error"`
	ClientID string `json:"client_id,omitempty"`
}
