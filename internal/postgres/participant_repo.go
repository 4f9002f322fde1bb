package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticipantRepository struct {
	db *pgxpool.Pool
}

func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Exists(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, queries.QueryParticipantExists, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

func (r *ParticipantRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx, queries.QueryListParticipants, conversationID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var list []domain.Participant
	for rows.Next() {
		var (
			p    domain.Participant
			role string
			u    domain.UserSummary
			ur   string
		)
		if err := rows.Scan(&p.ConversationID, &p.UserID, &role, &p.JoinedAt, &p.LastReadAt,
			&u.FullName, &u.Email, &ur); err != nil {
			return nil, err
		}
		p.Role = domain.ParticipantRole(role)
		u.ID = p.UserID
		u.Role = domain.UserRole(ur)
		p.User = &u
		list = append(list, p)
	}
	return list, rows.Err()
}

// AdvanceWatermark moves last_read_at to the database's now(). The update doubles as
// the membership check: no row means the user is not a participant.
func (r *ParticipantRepository) AdvanceWatermark(ctx context.Context, conversationID, userID string) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRow(ctx, queries.QueryAdvanceWatermark, conversationID, userID).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrNotParticipant
		}
		return time.Time{}, mapPgError(err)
	}
	return at, nil
}
