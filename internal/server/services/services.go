// Package services contains server-side business logic. Services compose
// repositories from a RepositoryManager and run every mutation inside
// dbx.WithTx.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathwayfr/pathway/internal/common"
)

// Notifier sends account emails.
type Notifier interface {
	SendVerification(ctx context.Context, to, firstName, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendPasswordChanged(ctx context.Context, to string) error
}

// classify passes classified errors through and marks anything else internal,
// keeping the original failure in the chain for logging.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if common.KindOf(err) != common.KindInternal {
		return err
	}
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}

func userLookup(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUserNotFound
	}
	return classify(op, err)
}
