package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartsprint/smartsprint/internal/shared"
)

// Postgres SQLSTATE codes we translate.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeSerialization       = "40001"
	codeDeadlockDetected    = "40P01"
)

// Classify wraps a driver error with the matching shared error kind.
// pgx.ErrNoRows becomes ErrNotFound, FK violations ErrValidation, unique
// violations and lost transaction races ErrConflict, everything else
// ErrPersistence.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, shared.ErrConflict) || errors.Is(err, shared.ErrPersistence) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, shared.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, shared.ErrValidation, pgErr.ConstraintName)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, shared.ErrConflict, pgErr.ConstraintName)
		case codeSerialization, codeDeadlockDetected:
			return fmt.Errorf("%s: %w: concurrent update, retry", op, shared.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, shared.ErrPersistence, err)
}
