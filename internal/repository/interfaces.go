package repository

import (
	"context"
	"errors"

	"github.com/baharkarakas/pix-credits/internal/models"
)

// ErrNotFound is returned by all stores when the row does not exist.
var ErrNotFound = errors.New("not found")

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type Balances interface {
	Get(ctx context.Context, userID string) (models.Balance, error)
	GetOrCreate(ctx context.Context, userID string) (models.Balance, error)
	// Increment must be atomic with respect to concurrent increments for the
	// same user.
	Increment(ctx context.Context, userID string, credits int64) (models.Balance, error)
}

// Ledger persists one row per payment attempt. Rows are never deleted.
type Ledger interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	GetByExternalID(ctx context.Context, externalID string) (models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
	// CasCreditsApplied flips credits_applied false->true and reports whether
	// this caller performed the flip. A false return with nil error means a
	// concurrent reconciliation already won; callers must not credit.
	CasCreditsApplied(ctx context.Context, id string) (bool, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
