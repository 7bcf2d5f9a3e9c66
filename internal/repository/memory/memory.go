// Package memory holds reference in-memory implementations of the store
// contracts. They back the test suite and document the concurrency semantics
// the SQL implementations must provide, the CAS on credits_applied above all.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baharkarakas/pix-credits/internal/models"
	repo "github.com/baharkarakas/pix-credits/internal/repository"
	"github.com/google/uuid"
)

type Repositories struct {
	Users     *UsersRepo
	Balances  *BalancesRepo
	Ledger    *LedgerRepo
	AuditLogs *AuditLogsRepo
}

func NewRepositories() Repositories {
	return Repositories{
		Users:     &UsersRepo{byID: map[string]models.User{}},
		Balances:  &BalancesRepo{rows: map[string]models.Balance{}},
		Ledger:    &LedgerRepo{byID: map[string]*models.Transaction{}, byExternal: map[string]string{}},
		AuditLogs: &AuditLogsRepo{},
	}
}

// ---- users ----

type UsersRepo struct {
	mu   sync.RWMutex
	byID map[string]models.User
}

func (r *UsersRepo) Create(_ context.Context, username, email, hash, role string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	r.byID[u.ID] = u
	return u, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

// ---- balances ----

type BalancesRepo struct {
	mu   sync.Mutex
	rows map[string]models.Balance
}

func (r *BalancesRepo) Get(_ context.Context, userID string) (models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[userID]
	if !ok {
		return models.Balance{}, repo.ErrNotFound
	}
	return b, nil
}

func (r *BalancesRepo) GetOrCreate(_ context.Context, userID string) (models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[userID]
	if !ok {
		b = models.Balance{UserID: userID, LastUpdatedAt: time.Now()}
		r.rows[userID] = b
	}
	return b, nil
}

func (r *BalancesRepo) Increment(_ context.Context, userID string, credits int64) (models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.rows[userID]
	b.UserID = userID
	b.Credits += credits
	b.LastUpdatedAt = time.Now()
	r.rows[userID] = b
	return b, nil
}

// ---- ledger ----

type LedgerRepo struct {
	mu         sync.Mutex
	byID       map[string]*models.Transaction
	byExternal map[string]string // external payment id -> transaction id
}

func (r *LedgerRepo) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	cp := tx
	r.byID[tx.ID] = &cp
	r.byExternal[tx.ExternalPaymentID] = tx.ID
	return tx, nil
}

func (r *LedgerRepo) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.byID[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return *tx, nil
}

func (r *LedgerRepo) GetByExternalID(_ context.Context, externalID string) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return *r.byID[id], nil
}

func (r *LedgerRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, tx := range r.byID {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *LedgerRepo) UpdateStatus(_ context.Context, id string, status models.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	tx.Status = status
	return nil
}

func (r *LedgerRepo) CasCreditsApplied(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.byID[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if tx.CreditsApplied {
		return false, nil
	}
	tx.CreditsApplied = true
	return true, nil
}

// ---- audit logs ----

type AuditLogsRepo struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (r *AuditLogsRepo) Create(_ context.Context, l models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.CreatedAt = time.Now()
	r.logs = append(r.logs, l)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *AuditLogsRepo) Entries() []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditLog, len(r.logs))
	copy(out, r.logs)
	return out
}
