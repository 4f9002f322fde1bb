package domain

import "github.com/loft-algerie/messaging/pkg/errs"

var (
	ErrInvalidInput         = errs.New(errs.ErrInvalidInput, "invalid input")
	ErrNoParticipants       = errs.New(errs.ErrInvalidInput, "participants are required")
	ErrGroupNameRequired    = errs.New(errs.ErrInvalidInput, "group name required")
	ErrEmptyMessage         = errs.New(errs.ErrInvalidInput, "empty message")
	ErrMessageTooLong       = errs.New(errs.ErrInvalidInput, "message too long")
	ErrConversationNotFound = errs.New(errs.ErrNotFound, "conversation not found")
	ErrNotParticipant       = errs.New(errs.ErrForbidden, "user is not a participant in this conversation")
	ErrForbiddenRecipient   = errs.New(errs.ErrForbidden, "you can only message team members and administrators")
	ErrUserNotFound         = errs.New(errs.ErrNotFound, "user not found")
	ErrNotificationNotFound = errs.New(errs.ErrNotFound, "notification not found")
	ErrFeatureUnavailable   = errs.New(errs.ErrUnavailable, "feature not provisioned")
)
