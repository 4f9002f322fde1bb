package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/pkg/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var ErrConflict = errs.New(errs.ErrConflict, "postgres: conflict")

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidTextRepr     = "22P02"
	codeUndefinedTable      = "42P01"
)

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case codeForeignKeyViolation, codeInvalidTextRepr:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, pgErr.Message)
	case codeUndefinedTable:
		return fmt.Errorf("%w: %s", domain.ErrFeatureUnavailable, pgErr.Message)
	}
	return err
}

// likePattern builds a substring ILIKE pattern with wildcards in q escaped.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
