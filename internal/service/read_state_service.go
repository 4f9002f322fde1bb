package service

import (
	"context"
	"fmt"
	"time"

	"github.com/loft-algerie/messaging/internal/metrics"
)

// ReadStateService owns the read watermark. Unread state is always derived from it and
// the message timestamps, never stored.
type ReadStateService struct {
	participants ParticipantStore
	messages     MessageStore
	events       EventPublisher
}

func NewReadStateService(participants ParticipantStore, messages MessageStore, events EventPublisher) *ReadStateService {
	if events == nil {
		events = noopPublisher{}
	}
	return &ReadStateService{participants: participants, messages: messages, events: events}
}

// UnreadByConversation maps every conversation of userID to its unread count, zeros
// included.
func (s *ReadStateService) UnreadByConversation(ctx context.Context, userID string) (map[string]int, error) {
	counts, err := s.messages.UnreadByConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

// MarkRead moves the caller's watermark to the database clock. Repeating the call is
// harmless.
func (s *ReadStateService) MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error) {
	at, err := s.participants.AdvanceWatermark(ctx, conversationID, userID)
	if err != nil {
		return time.Time{}, err
	}
	metrics.MarkReads.Inc()
	s.events.PublishRead(ctx, conversationID, userID, at)
	return at, nil
}
