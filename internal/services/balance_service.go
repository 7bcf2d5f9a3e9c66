package services

import (
	"context"

	"github.com/baharkarakas/pix-credits/internal/models"
	repo "github.com/baharkarakas/pix-credits/internal/repository"
)

type BalanceService struct{ r repo.Balances }

func NewBalanceService(r repo.Balances) *BalanceService { return &BalanceService{r: r} }

func (s *BalanceService) Current(ctx context.Context, userID string) (models.Balance, error) {
	return s.r.GetOrCreate(ctx, userID)
}
