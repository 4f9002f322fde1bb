package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/metrics"
	"github.com/loft-algerie/messaging/pkg/logger"
)

const (
	capUnknown int = iota
	capPresent
	capMissing
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
	notifyTimeout            = 5 * time.Second
	recheckBackoff           = 30 * time.Second
)

// NotificationService creates and reads user notifications. Deployments without the
// notifications table are supported: the table is looked up once and reads degrade to
// empty results.
type NotificationService struct {
	store NotificationStore

	mu       sync.Mutex
	cap      int
	checking bool
	retryAt  time.Time
	now      func() time.Time

	wg sync.WaitGroup
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store, now: time.Now}
}

// Available reports whether the notifications table exists. A successful lookup is
// cached for the life of the process. A failed lookup counts as available and is not
// retried before recheckBackoff; callers never wait on a lookup another call is running.
func (s *NotificationService) Available(ctx context.Context) bool {
	s.mu.Lock()
	if s.cap != capUnknown {
		ok := s.cap == capPresent
		s.mu.Unlock()
		return ok
	}
	if s.checking || s.now().Before(s.retryAt) {
		s.mu.Unlock()
		return true
	}
	s.checking = true
	s.mu.Unlock()

	ok, err := s.store.TableExists(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checking = false
	if err != nil {
		s.retryAt = s.now().Add(recheckBackoff)
		logger.FromContext(ctx).Warn("notifications capability check failed", slog.Any("err", err))
		return true
	}
	if s.cap == capUnknown {
		if ok {
			s.cap = capPresent
		} else {
			s.cap = capMissing
			logger.FromContext(ctx).Warn("notifications table missing, notifications disabled")
		}
	}
	return s.cap == capPresent
}

// observe flips the cached capability when the store reports a missing table.
func (s *NotificationService) observe(err error) bool {
	if !errors.Is(err, domain.ErrFeatureUnavailable) {
		return false
	}
	s.mu.Lock()
	s.cap = capMissing
	s.mu.Unlock()
	return true
}

func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	if !s.Available(ctx) {
		return 0, nil
	}
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		if s.observe(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	if !s.Available(ctx) {
		return []domain.Notification{}, nil
	}
	list, err := s.store.List(ctx, userID, limit)
	if err != nil {
		if s.observe(err) {
			return []domain.Notification{}, nil
		}
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkRead flags one of the user's notifications as read. The first time a notification
// with a sender is read, the sender gets a receipt in the background.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if !s.Available(ctx) {
		return domain.ErrNotificationNotFound
	}
	m, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		if s.observe(err) {
			return domain.ErrNotificationNotFound
		}
		return err
	}
	if m.NeedsReceipt() {
		s.Notify(ctx, []string{*m.SenderID}, receipt(m))
	}
	return nil
}

func receipt(m *domain.MarkedNotification) NotificationInput {
	reader := m.ReaderName
	if reader == "" {
		reader = "a user"
	}
	owner := m.UserID
	return NotificationInput{
		Title:    domain.ReceiptTitle,
		Message:  fmt.Sprintf("Your notification %q has been read by %s.", m.Title, reader),
		Type:     domain.NotificationInfo,
		SenderID: &owner,
	}
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if !s.Available(ctx) {
		return domain.ErrNotificationNotFound
	}
	err := s.store.Delete(ctx, id, userID)
	if s.observe(err) {
		return domain.ErrNotificationNotFound
	}
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if !s.Available(ctx) {
		return 0, nil
	}
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		if s.observe(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}

// NotificationInput is the content shared by single and bulk creation.
type NotificationInput struct {
	Title    string
	Message  string
	Type     domain.NotificationType
	Link     *string
	SenderID *string
}

// Create stores one notification per user and returns how many were written. When the
// table is missing nothing is written and 0 is returned.
func (s *NotificationService) Create(ctx context.Context, userIDs []string, in NotificationInput) (int64, error) {
	if len(userIDs) == 0 {
		return 0, domain.ErrInvalidInput
	}
	tmpl, err := domain.NewNotification(userIDs[0], in.Title, in.Message, in.Type, in.Link, in.SenderID)
	if err != nil {
		return 0, err
	}
	if !s.Available(ctx) {
		metrics.RecordNotification("dropped")
		logger.FromContext(ctx).Warn("notification dropped, table missing", slog.Int("recipients", len(userIDs)))
		return 0, nil
	}

	var n int64
	if len(userIDs) == 1 {
		err = s.store.Create(ctx, tmpl)
		n = 1
	} else {
		n, err = s.store.CreateBulk(ctx, userIDs, *tmpl)
	}
	if err != nil {
		if s.observe(err) {
			metrics.RecordNotification("dropped")
			logger.FromContext(ctx).Warn("notification dropped, table missing", slog.Int("recipients", len(userIDs)))
			return 0, nil
		}
		metrics.RecordNotification("failed")
		return 0, fmt.Errorf("create notification: %w", err)
	}
	metrics.RecordNotification("created")
	return n, nil
}

// Notify creates notifications in the background. Errors are logged and never reach
// the caller, so a failing notification cannot fail the operation that triggered it.
func (s *NotificationService) Notify(ctx context.Context, userIDs []string, in NotificationInput) {
	if len(userIDs) == 0 {
		return
	}
	ids := append([]string(nil), userIDs...)
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(bg, notifyTimeout)
		defer cancel()

		if _, err := s.Create(ctx, ids, in); err != nil {
			logger.FromContext(ctx).Error("notify failed",
				slog.String("title", in.Title),
				slog.Int("recipients", len(ids)),
				slog.Any("err", err),
			)
		}
	}()
}

// Wait blocks until background notifications have finished.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}
