package service

import (
	"context"
	"fmt"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/metrics"
)

type ChatService struct {
	messages     MessageStore
	participants ParticipantStore
	convs        ConversationStore
	events       EventPublisher

	maxLength   int
	defaultPage int
	maxPage     int
}

type ChatOptions struct {
	MaxMessageLength int
	DefaultPageSize  int
	MaxPageSize      int
}

func NewChatService(messages MessageStore, participants ParticipantStore, convs ConversationStore, events EventPublisher, opts ChatOptions) *ChatService {
	if events == nil {
		events = noopPublisher{}
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 4000
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 50
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	return &ChatService{
		messages:     messages,
		participants: participants,
		convs:        convs,
		events:       events,
		maxLength:    opts.MaxMessageLength,
		defaultPage:  opts.DefaultPageSize,
		maxPage:      opts.MaxPageSize,
	}
}

// Send appends a message on behalf of senderID. Membership is enforced by the store in
// the same statement as the insert.
func (s *ChatService) Send(ctx context.Context, conversationID, senderID, content string, typ domain.MessageType) (*domain.Message, error) {
	content, typ, err := domain.NormalizeMessage(content, typ, s.maxLength)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           typ,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(string(typ)).Inc()
	s.events.PublishMessage(ctx, *msg)
	return msg, nil
}

type HistoryPage struct {
	Conversation *domain.Conversation
	Messages     []domain.Message
	NextCursor   string
}

// History returns the messages of a conversation oldest first. With limit == 0 and no
// cursor the whole history is returned, otherwise a page ending before the cursor.
// Reading history does not move the read watermark. Non-members get ErrNotParticipant
// whether or not the conversation exists.
func (s *ChatService) History(ctx context.Context, conversationID, userID, before string, limit int) (*HistoryPage, error) {
	ok, err := s.participants.Exists(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotParticipant
	}
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Conversation: conv}
	if limit == 0 && before == "" {
		page.Messages, err = s.messages.List(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		return page, nil
	}

	if limit <= 0 {
		limit = s.defaultPage
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}
	page.Messages, page.NextCursor, err = s.messages.ListBefore(ctx, conversationID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}
