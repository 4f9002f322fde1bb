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

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores m and fills ID and CreatedAt. Returns domain.ErrNotParticipant when the
// sender has no participant row.
func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	err := r.db.QueryRow(ctx, queries.QueryAppendMessage,
		m.ConversationID, m.SenderID, m.Content, string(m.Type),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotParticipant
		}
		return mapPgError(err)
	}
	return nil
}

// List returns every message of the conversation, oldest first.
func (r *MessageRepository) List(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, queries.QueryListMessages, conversationID)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectMessages(rows)
}

// ListBefore returns up to limit messages older than the cursor, oldest first, and the
// cursor for the next (older) page, empty when exhausted.
func (r *MessageRepository) ListBefore(ctx context.Context, conversationID, before string, limit int) ([]domain.Message, string, error) {
	cur, err := DecodeCursor(before)
	if err != nil {
		return nil, "", err
	}

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, queries.QueryListMessagesBefore, conversationID, createdAt, id, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	out, err := collectMessages(rows)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if next, err = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); err != nil {
			return nil, "", err
		}
	}

	// rows come newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, next, nil
}

// UnreadByConversation counts, for every conversation the user participates in, the
// messages from other senders newer than the user's watermark.
func (r *MessageRepository) UnreadByConversation(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.Query(ctx, queries.QueryUnreadByConversation, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			convID string
			n      int64
		)
		if err := rows.Scan(&convID, &n); err != nil {
			return nil, fmt.Errorf("scan unread row: %w", err)
		}
		counts[convID] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread rows: %w", err)
	}
	return counts, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	out := make([]domain.Message, 0, 32)
	for rows.Next() {
		var (
			m     domain.Message
			typ   string
			name  string
			email string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &typ, &m.CreatedAt, &name, &email); err != nil {
			return nil, err
		}
		m.Type = domain.MessageType(typ)
		m.Sender = &domain.UserSummary{ID: m.SenderID, FullName: name, Email: email}
		out = append(out, m)
	}
	return out, rows.Err()
}
