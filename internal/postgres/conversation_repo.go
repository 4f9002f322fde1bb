package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/pg"
	"github.com/loft-algerie/messaging/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts the conversation, the creator (admin) and the invitees (members)
// in one transaction. Either everything persists or nothing does.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation, creatorID string, inviteeIDs []string) error {
	return pg.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return insertConversation(ctx, tx, conv, creatorID, inviteeIDs)
	})
}

func insertConversation(ctx context.Context, q querier, conv *domain.Conversation, creatorID string, inviteeIDs []string) error {
	err := q.QueryRow(ctx, queries.QueryCreateConversation, conv.Name, string(conv.Type)).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", mapPgError(err))
	}
	if _, err := q.Exec(ctx, queries.QueryAddCreator, conv.ID, creatorID); err != nil {
		return fmt.Errorf("insert creator: %w", mapPgError(err))
	}
	if _, err := q.Exec(ctx, queries.QueryAddMembers, conv.ID, inviteeIDs); err != nil {
		return fmt.Errorf("insert participants: %w", mapPgError(err))
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return scanConversation(r.db.QueryRow(ctx, queries.QueryGetConversation, id))
}

// FindDirect returns the direct conversation having exactly userA and userB.
func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	return scanConversation(r.db.QueryRow(ctx, queries.QueryFindDirectConversation, userA, userB))
}

// ListForUser returns the user's conversations, most recently active first, each with
// its last message and the user's unread count.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := r.db.Query(ctx, queries.QueryListUserConversations, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Conversation, 0, 16)
	for rows.Next() {
		var (
			c        domain.Conversation
			typ      string
			lmID     *string
			lmSender *string
			lmBody   *string
			lmType   *string
			lmAt     *time.Time
			unread   int64
		)
		if err := rows.Scan(
			&c.ID, &c.Name, &typ, &c.CreatedAt, &c.UpdatedAt,
			&lmID, &lmSender, &lmBody, &lmType, &lmAt,
			&unread,
		); err != nil {
			return nil, err
		}
		c.Type = domain.ConversationType(typ)
		c.UnreadCount = int(unread)
		if lmID != nil {
			c.LastMessage = &domain.Message{
				ID:             *lmID,
				ConversationID: c.ID,
				SenderID:       deref(lmSender),
				Content:        deref(lmBody),
				Type:           domain.MessageType(deref(lmType)),
				CreatedAt:      derefTime(lmAt),
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var (
		c   domain.Conversation
		typ string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, mapPgError(err)
	}
	c.Type = domain.ConversationType(typ)
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
