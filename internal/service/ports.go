package service

import (
	"context"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
)

// Storage ports. internal/postgres provides the production implementations.

type ConversationStore interface {
	Create(ctx context.Context, conv *domain.Conversation, creatorID string, inviteeIDs []string) error
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	FindDirect(ctx context.Context, userA, userB string) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
}

type ParticipantStore interface {
	Exists(ctx context.Context, conversationID, userID string) (bool, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Participant, error)
	AdvanceWatermark(ctx context.Context, conversationID, userID string) (time.Time, error)
}

type MessageStore interface {
	Append(ctx context.Context, m *domain.Message) error
	List(ctx context.Context, conversationID string) ([]domain.Message, error)
	ListBefore(ctx context.Context, conversationID, before string, limit int) ([]domain.Message, string, error)
	UnreadByConversation(ctx context.Context, userID string) (map[string]int, error)
}

type NotificationStore interface {
	TableExists(ctx context.Context) (bool, error)
	Create(ctx context.Context, n *domain.Notification) error
	CreateBulk(ctx context.Context, userIDs []string, tmpl domain.Notification) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (*domain.MarkedNotification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
}

type UserStore interface {
	GetSummary(ctx context.Context, userID string) (*domain.UserSummary, error)
	RecipientScope(ctx context.Context, userID string) (map[string]struct{}, error)
	Search(ctx context.Context, excludeID, q string, within []string, limit int) ([]domain.UserSummary, error)
}

// EventPublisher pushes conversation events to realtime subscribers. Delivery is best
// effort; implementations must not block on slow clients.
type EventPublisher interface {
	PublishMessage(ctx context.Context, m domain.Message)
	PublishRead(ctx context.Context, conversationID, userID string, at time.Time)
}

type noopPublisher struct{}

func (noopPublisher) PublishMessage(context.Context, domain.Message)         {}
func (noopPublisher) PublishRead(context.Context, string, string, time.Time) {}
