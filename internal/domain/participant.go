package domain

import "time"

type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant is a membership row. LastReadAt nil means the conversation was never read.
type Participant struct {
	ConversationID string
	UserID         string
	Role           ParticipantRole
	JoinedAt       time.Time
	LastReadAt     *time.Time

	User *UserSummary
}

// Watermark returns the effective read boundary, the epoch when never read.
func (p Participant) Watermark() time.Time {
	if p.LastReadAt == nil {
		return time.Unix(0, 0).UTC()
	}
	return *p.LastReadAt
}
