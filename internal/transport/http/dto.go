package http

import (
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
)

type CreateConversationRequest struct {
	Type           string   `json:"type" validate:"omitempty,oneof=direct group"`
	Name           *string  `json:"name" validate:"omitempty,max=120"`
	ParticipantIDs []string `json:"participant_ids" validate:"max=100,dive,uuid"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type" validate:"omitempty,oneof=text image file system"`
}

type MarkReadRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

// CreateNotificationRequest targets one user (user_id) or many (user_ids).
type CreateNotificationRequest struct {
	UserID   string   `json:"user_id" validate:"omitempty,uuid"`
	UserIDs  []string `json:"user_ids" validate:"omitempty,max=1000,dive,uuid"`
	Title    string   `json:"title" validate:"required,max=200"`
	Message  string   `json:"message" validate:"max=2000"`
	Type     string   `json:"type" validate:"omitempty,oneof=info warning error success"`
	Link     *string  `json:"link" validate:"omitempty,max=500"`
	SenderID *string  `json:"sender_id" validate:"omitempty,uuid"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type CreatedResponse struct {
	Created int64 `json:"created"`
}

type UserItem struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type MessageItem struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
	Sender         *UserItem `json:"sender,omitempty"`
}

type ParticipantItem struct {
	UserID     string     `json:"user_id"`
	Role       string     `json:"role"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at"`
	User       *UserItem  `json:"user,omitempty"`
}

type ConversationItem struct {
	ID           string            `json:"id"`
	Name         *string           `json:"name"`
	Type         string            `json:"type"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Participants []ParticipantItem `json:"participants,omitempty"`
	LastMessage  *MessageItem      `json:"last_message,omitempty"`
	UnreadCount  int               `json:"unread_count"`
}

type MessagesResponse struct {
	Messages     []MessageItem    `json:"messages"`
	Conversation ConversationItem `json:"conversation"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

type NotificationItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      *string   `json:"link"`
	SenderID  *string   `json:"sender_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserItem(u *domain.UserSummary) *UserItem {
	if u == nil {
		return nil
	}
	return &UserItem{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: string(u.Role)}
}

func toMessageItem(m domain.Message) MessageItem {
	return MessageItem{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    string(m.Type),
		CreatedAt:      m.CreatedAt,
		Sender:         toUserItem(m.Sender),
	}
}

func toConversationItem(c *domain.Conversation) ConversationItem {
	item := ConversationItem{
		ID:          c.ID,
		Name:        c.Name,
		Type:        string(c.Type),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		UnreadCount: c.UnreadCount,
	}
	for _, p := range c.Participants {
		item.Participants = append(item.Participants, ParticipantItem{
			UserID:     p.UserID,
			Role:       string(p.Role),
			JoinedAt:   p.JoinedAt,
			LastReadAt: p.LastReadAt,
			User:       toUserItem(p.User),
		})
	}
	if c.LastMessage != nil {
		lm := toMessageItem(*c.LastMessage)
		item.LastMessage = &lm
	}
	return item
}

func toNotificationItem(n domain.Notification) NotificationItem {
	return NotificationItem{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Link:      n.Link,
		SenderID:  n.SenderID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
