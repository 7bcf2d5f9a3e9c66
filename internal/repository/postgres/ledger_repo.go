package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/pix-credits/internal/models"
	repo "github.com/baharkarakas/pix-credits/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ledgerRepo struct{ pool *pgxpool.Pool }

const txnColumns = `id, user_id, amount_cents, credits, idempotency_key, external_payment_id, status, credits_applied, description, created_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.ID, &tx.UserID, &tx.AmountCents, &tx.Credits, &tx.IdempotencyKey,
		&tx.ExternalPaymentID, &tx.Status, &tx.CreditsApplied, &tx.Description, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repo.ErrNotFound
	}
	return tx, err
}

func (r *ledgerRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	return scanTxn(r.pool.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, amount_cents, credits, idempotency_key, external_payment_id, status, credits_applied, description)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,false,$8)
		 RETURNING `+txnColumns,
		tx.ID, tx.UserID, tx.AmountCents, tx.Credits, tx.IdempotencyKey,
		tx.ExternalPaymentID, tx.Status, tx.Description,
	))
}

func (r *ledgerRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return scanTxn(r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id=$1`, id))
}

func (r *ledgerRepo) GetByExternalID(ctx context.Context, externalID string) (models.Transaction, error) {
	return scanTxn(r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE external_payment_id=$1`, externalID))
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnColumns+`
		   FROM transactions
		  WHERE user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// CasCreditsApplied relies on the conditional WHERE for its atomicity: two
// concurrent callers both execute the UPDATE, Postgres serializes them on the
// row, and exactly one sees RowsAffected()==1.
func (r *ledgerRepo) CasCreditsApplied(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET credits_applied=true WHERE id=$1 AND credits_applied=false`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
