package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/metrics"
)

// Notifier is the fire-and-forget side of NotificationService.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, in NotificationInput)
}

type ConversationService struct {
	convs        ConversationStore
	participants ParticipantStore
	users        UserStore
	notifier     Notifier
}

func NewConversationService(convs ConversationStore, participants ParticipantStore, users UserStore, notifier Notifier) *ConversationService {
	return &ConversationService{
		convs:        convs,
		participants: participants,
		users:        users,
		notifier:     notifier,
	}
}

type CreateConversationInput struct {
	Type           domain.ConversationType
	Name           *string
	ParticipantIDs []string
}

// Create opens a conversation for creatorID. For a direct conversation with one other
// user the existing one is returned and created is false.
func (s *ConversationService) Create(ctx context.Context, creatorID string, in CreateConversationInput) (*domain.Conversation, bool, error) {
	conv, invitees, err := domain.NewConversation(creatorID, in.Type, in.Name, in.ParticipantIDs)
	if err != nil {
		return nil, false, err
	}

	if err := s.checkRecipients(ctx, creatorID, invitees); err != nil {
		return nil, false, err
	}

	if conv.Type == domain.ConversationDirect && len(invitees) == 1 {
		existing, err := s.convs.FindDirect(ctx, creatorID, invitees[0])
		switch {
		case err == nil:
			return existing, false, nil
		case !errors.Is(err, domain.ErrConversationNotFound):
			return nil, false, fmt.Errorf("find direct conversation: %w", err)
		}
	}

	if err := s.convs.Create(ctx, conv, creatorID, invitees); err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsCreated.WithLabelValues(string(conv.Type)).Inc()

	if s.notifier != nil {
		s.notifier.Notify(ctx, invitees, s.invitation(ctx, conv, creatorID))
	}
	return conv, true, nil
}

// checkRecipients lets admins message anyone and everyone else only teammates and
// admins.
func (s *ConversationService) checkRecipients(ctx context.Context, creatorID string, invitees []string) error {
	creator, err := s.users.GetSummary(ctx, creatorID)
	switch {
	case err == nil:
		if creator.Role == domain.UserAdmin {
			return nil
		}
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return fmt.Errorf("load creator: %w", err)
	}

	scope, err := s.users.RecipientScope(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("load recipient scope: %w", err)
	}
	for _, id := range invitees {
		if _, ok := scope[id]; !ok {
			return domain.ErrForbiddenRecipient
		}
	}
	return nil
}

func (s *ConversationService) invitation(ctx context.Context, conv *domain.Conversation, creatorID string) NotificationInput {
	who := "Someone"
	if u, err := s.users.GetSummary(ctx, creatorID); err == nil && u.FullName != "" {
		who = u.FullName
	}
	msg := who + " started a conversation with you"
	if conv.Name != nil {
		msg = who + " added you to " + *conv.Name
	}
	link := "/conversations/" + conv.ID
	sender := creatorID
	return NotificationInput{
		Title:    "New conversation",
		Message:  msg,
		Type:     domain.NotificationInfo,
		Link:     &link,
		SenderID: &sender,
	}
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	list, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return list, nil
}

// Get returns the conversation with its participants. The caller must be one of them;
// non-members get ErrNotParticipant whether or not the conversation exists.
func (s *ConversationService) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	ok, err := s.participants.Exists(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotParticipant
	}
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Participants, err = s.participants.ListByConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return conv, nil
}

// IsParticipant is the membership check used before opening a realtime stream.
func (s *ConversationService) IsParticipant(ctx context.Context, id, userID string) (bool, error) {
	return s.participants.Exists(ctx, id, userID)
}
