package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// TableExists reports whether the notifications table is provisioned.
func (r *NotificationRepository) TableExists(ctx context.Context) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, queries.QueryNotificationsTableExists).Scan(&ok); err != nil {
		return false, mapPgError(err)
	}
	return ok, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	err := r.db.QueryRow(ctx, queries.QueryCreateNotification,
		n.UserID, n.Title, n.Message, string(n.Type), n.Link, n.SenderID,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", mapPgError(err))
	}
	return nil
}

// CreateBulk inserts the same notification for every user in one statement and returns
// the number of rows written.
func (r *NotificationRepository) CreateBulk(ctx context.Context, userIDs []string, tmpl domain.Notification) (int64, error) {
	tag, err := r.db.Exec(ctx, queries.QueryCreateNotificationsBulk,
		userIDs, tmpl.Title, tmpl.Message, string(tmpl.Type), tmpl.Link, tmpl.SenderID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert notifications: %w", mapPgError(err))
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx, queries.QueryCountUnreadNotifications, userID).Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return int(n), nil
}

func (r *NotificationRepository) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, queries.QueryListNotifications, userID, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0, limit)
	for rows.Next() {
		var (
			n   domain.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.Link, &n.SenderID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = domain.NotificationType(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

// MarkRead flags one notification owned by userID as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (*domain.MarkedNotification, error) {
	var (
		m   domain.MarkedNotification
		typ string
	)
	err := r.db.QueryRow(ctx, queries.QueryMarkNotificationRead, id, userID).Scan(
		&m.ID, &m.UserID, &m.Title, &m.Message, &typ,
		&m.Link, &m.SenderID, &m.CreatedAt, &m.FirstRead, &m.ReaderName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, mapPgError(err)
	}
	m.Type = domain.NotificationType(typ)
	m.IsRead = true
	return &m, nil
}

// Delete removes one notification owned by userID.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx, queries.QueryDeleteNotification, id, userID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, queries.QueryMarkAllNotificationsRead, userID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}
