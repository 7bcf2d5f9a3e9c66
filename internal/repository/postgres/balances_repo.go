package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/pix-credits/internal/models"
	repo "github.com/baharkarakas/pix-credits/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type balancesRepo struct{ pool *pgxpool.Pool }

func (r *balancesRepo) Get(ctx context.Context, userID string) (models.Balance, error) {
	var b models.Balance
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, credits, last_updated_at FROM balances WHERE user_id=$1`,
		userID,
	).Scan(&b.UserID, &b.Credits, &b.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Balance{}, repo.ErrNotFound
	}
	return b, err
}

func (r *balancesRepo) GetOrCreate(ctx context.Context, userID string) (models.Balance, error) {
	if b, err := r.Get(ctx, userID); err == nil {
		return b, nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO balances(user_id, credits, last_updated_at)
		 VALUES($1, 0, now())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return models.Balance{}, err
	}
	return r.Get(ctx, userID)
}

// Increment is a single arithmetic UPDATE, so concurrent credits for the same
// user serialize at the row level inside Postgres.
func (r *balancesRepo) Increment(ctx context.Context, userID string, credits int64) (models.Balance, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return models.Balance{}, err
	}
	var b models.Balance
	err := r.pool.QueryRow(ctx,
		`UPDATE balances
		    SET credits = credits + $2,
		        last_updated_at = now()
		  WHERE user_id = $1
		  RETURNING user_id, credits, last_updated_at`,
		userID, credits,
	).Scan(&b.UserID, &b.Credits, &b.LastUpdatedAt)
	return b, err
}
