package postgres

import (
	"context"
	"errors"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/postgres/queries"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetSummary(ctx context.Context, userID string) (*domain.UserSummary, error) {
	var (
		u    domain.UserSummary
		role string
	)
	err := r.db.QueryRow(ctx, queries.QueryGetUserSummary, userID).Scan(&u.ID, &u.FullName, &u.Email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapPgError(err)
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}

// RecipientScope returns the ids a non-admin user may message: admins and teammates.
func (r *UserRepository) RecipientScope(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, queries.QueryRecipientScope, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	scope := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		scope[id] = struct{}{}
	}
	return scope, rows.Err()
}

// Search matches q against name and email. A nil within means no restriction.
func (r *UserRepository) Search(ctx context.Context, excludeID, q string, within []string, limit int) ([]domain.UserSummary, error) {
	var scope any
	if within != nil {
		scope = within
	}
	rows, err := r.db.Query(ctx, queries.QuerySearchUsers, excludeID, likePattern(q), scope, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.UserSummary, 0, limit)
	for rows.Next() {
		var (
			u    domain.UserSummary
			role string
		)
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &role); err != nil {
			return nil, err
		}
		u.Role = domain.UserRole(role)
		out = append(out, u)
	}
	return out, rows.Err()
}
