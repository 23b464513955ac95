package unitofwork

import (
	"context"
	"errors"

	"live-relay-be/internal/errs"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes that mean "run the transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// WithinTransaction runs fn in a fresh transaction and commits it. When the
// attempt loses a race with a concurrent writer the whole transaction,
// reads included, is replayed up to maxAttempts times so fn re-evaluates
// its preconditions against the winner's state. The last error is
// returned once attempts are exhausted.
func WithinTransaction(ctx context.Context, factory RepositoryFactory, maxAttempts int, fn func(uow UnitOfWork) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = runOnce(ctx, factory, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

func runOnce(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

func IsRetryable(err error) bool {
	if errors.Is(err, errs.ErrConcurrentModification) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return true
		}
	}
	return false
}
