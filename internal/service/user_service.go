package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/loft-algerie/messaging/internal/domain"
)

const minSearchLength = 2

type UserService struct {
	users UserStore
	limit int
}

func NewUserService(users UserStore, limit int) *UserService {
	if limit <= 0 {
		limit = 10
	}
	return &UserService{users: users, limit: limit}
}

// Search finds users the caller may start a conversation with. Queries shorter than two
// characters return nothing without hitting the store.
func (s *UserService) Search(ctx context.Context, callerID, q string) ([]domain.UserSummary, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < minSearchLength {
		return []domain.UserSummary{}, nil
	}

	var within []string
	caller, err := s.users.GetSummary(ctx, callerID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	if caller == nil || caller.Role != domain.UserAdmin {
		scope, err := s.users.RecipientScope(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("load recipient scope: %w", err)
		}
		within = make([]string, 0, len(scope))
		for id := range scope {
			within = append(within, id)
		}
	}

	found, err := s.users.Search(ctx, callerID, q, within, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	if found == nil {
		found = []domain.UserSummary{}
	}
	return found, nil
}
