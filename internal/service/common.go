package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// notifier delivers a message to a user without blocking the caller.
type notifier interface {
	Notify(ctx context.Context, userID, message string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string) {}

// pendingNotice is a notification held back until its transaction commits.
type pendingNotice struct {
	userID  string
	message string
}

func flushNotices(ctx context.Context, n notifier, notices []pendingNotice) {
	for _, notice := range notices {
		n.Notify(ctx, notice.userID, notice.message)
	}
}

// inTx runs fn inside a transaction, rolling back when fn or the commit fails.
func inTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return internalError(err, "failed to commit transaction")
	}
	return nil
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// lookupError maps sql.ErrNoRows to NotFound and everything else to Internal.
func lookupError(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, failure)
}
