package domain

import (
	"strings"
	"time"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

func (t ConversationType) Valid() bool {
	return t == ConversationDirect || t == ConversationGroup
}

type Conversation struct {
	ID        string
	Name      *string
	Type      ConversationType
	CreatedAt time.Time
	UpdatedAt time.Time

	Participants []Participant
	LastMessage  *Message
	UnreadCount  int
}

// NewConversation validates the request and returns the conversation together with the
// deduplicated invitee ids (creator excluded).
func NewConversation(creatorID string, typ ConversationType, name *string, participantIDs []string) (*Conversation, []string, error) {
	if !typ.Valid() {
		return nil, nil, ErrInvalidInput
	}

	name = trimPtr(name)
	if typ == ConversationGroup && name == nil {
		return nil, nil, ErrGroupNameRequired
	}

	invitees := make([]string, 0, len(participantIDs))
	seen := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == creatorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		invitees = append(invitees, id)
	}
	if len(invitees) == 0 {
		return nil, nil, ErrNoParticipants
	}

	return &Conversation{Name: name, Type: typ}, invitees, nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
