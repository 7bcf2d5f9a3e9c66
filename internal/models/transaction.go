package models

import "time"

// TransactionStatus mirrors the lifecycle the payment provider reports.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnInProcess TransactionStatus = "in_process"
	TxnApproved  TransactionStatus = "approved"
	TxnRejected  TransactionStatus = "rejected"
	TxnCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether the provider will never move the payment again.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxnApproved || s == TxnRejected || s == TxnCancelled
}

// NormalizeStatus maps a raw provider status onto our lifecycle. Providers
// grow new intermediate statuses over time; anything unrecognized is treated
// as still in flight so a later notification can settle it.
func NormalizeStatus(raw string) TransactionStatus {
	switch TransactionStatus(raw) {
	case TxnPending, TxnInProcess, TxnApproved, TxnRejected, TxnCancelled:
		return TransactionStatus(raw)
	default:
		return TxnInProcess
	}
}

// Transaction is the ledger record for one payment attempt. Rows are
// append-only: only status and credits_applied ever change after creation.
type Transaction struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	AmountCents       int64             `json:"amount_cents"`
	Credits           int64             `json:"credits"`
	IdempotencyKey    string            `json:"-"`
	ExternalPaymentID string            `json:"external_payment_id"`
	Status            TransactionStatus `json:"status"`
	CreditsApplied    bool              `json:"credits_applied"`
	Description       string            `json:"description,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
