package domain

import (
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationSuccess NotificationType = "success"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationWarning, NotificationError, NotificationSuccess:
		return true
	}
	return false
}

type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      NotificationType
	Link      *string
	SenderID  *string
	IsRead    bool
	CreatedAt time.Time
}

func NewNotification(userID, title, message string, typ NotificationType, link, senderID *string) (*Notification, error) {
	title = strings.TrimSpace(title)
	if strings.TrimSpace(userID) == "" || title == "" {
		return nil, ErrInvalidInput
	}
	if typ == "" {
		typ = NotificationInfo
	}
	if !typ.Valid() {
		return nil, ErrInvalidInput
	}
	return &Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Type:     typ,
		Link:     trimPtr(link),
		SenderID: trimPtr(senderID),
	}, nil
}

// ReceiptTitle marks the notification a sender gets back once theirs was read.
const ReceiptTitle = "Notification Read"

// MarkedNotification is a notification after MarkRead. FirstRead is false when it was
// already read before the call; ReaderName is the owner's display name.
type MarkedNotification struct {
	Notification
	ReaderName string
	FirstRead  bool
}

// NeedsReceipt reports whether the sender should hear that the notification was read.
// Receipts never produce receipts.
func (m MarkedNotification) NeedsReceipt() bool {
	return m.FirstRead &&
		m.SenderID != nil && *m.SenderID != "" && *m.SenderID != m.UserID &&
		m.Title != ReceiptTitle
}
