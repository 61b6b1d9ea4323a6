package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"agrostock/internal/core/apperror"
)

// PostgreSQL error codes the ledger cares about.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgForeignKeyViolation  = "23503"
)

// TranslateError maps driver errors to application errors so services can
// branch on codes instead of sniffing SQLSTATE. Errors that are already
// AppError pass through untouched.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return apperror.NewConcurrencyConflict(pgErr.TableName, pgErr.ConstraintName).WithCause(err)
	case pgUniqueViolation:
		return apperror.NewDuplicate(pgErr.TableName, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
	case pgCheckViolation:
		return apperror.NewConflict("constraint violated: " + pgErr.ConstraintName).WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewConflict("referenced row missing: " + pgErr.ConstraintName).WithCause(err)
	default:
		return apperror.NewDatabase(err)
	}
}
