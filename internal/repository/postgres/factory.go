package postgres

import (
	repo "github.com/baharkarakas/pix-credits/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Users     repo.Users
	Balances  repo.Balances
	Ledger    repo.Ledger
	AuditLogs repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:     &usersRepo{pool},
		Balances:  &balancesRepo{pool},
		Ledger:    &ledgerRepo{pool},
		AuditLogs: &auditLogsRepo{pool},
	}
}
