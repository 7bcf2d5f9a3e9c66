package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/pix-credits/internal/metrics"
	"github.com/baharkarakas/pix-credits/internal/models"
	repo "github.com/baharkarakas/pix-credits/internal/repository"
	"github.com/baharkarakas/pix-credits/internal/retry"
	"github.com/baharkarakas/pix-credits/internal/worker"
)

// Notification is the inbound webhook body. Only the event type and the
// payment id are trusted; everything else in the delivery is a hint.
type Notification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ReconcilerService converts gateway-confirmed payment status into ledger
// transitions and, exactly once per transaction, a balance credit. It is safe
// under duplicate, concurrent and out-of-order deliveries: the conditioned
// credits_applied flip is the only lock it needs.
type ReconcilerService struct {
	gw       Gateway
	ledger   repo.Ledger
	balances repo.Balances
	audit    repo.AuditLogs
	wp       *worker.Pool
	retryCfg retry.Config
}

func NewReconcilerService(gw Gateway, ledger repo.Ledger, balances repo.Balances, audit repo.AuditLogs, wp *worker.Pool) *ReconcilerService {
	return &ReconcilerService{
		gw:       gw,
		ledger:   ledger,
		balances: balances,
		audit:    audit,
		wp:       wp,
		retryCfg: retry.DefaultConfig(),
	}
}

// Handle processes one webhook delivery. A nil return means the delivery is
// settled and must be acknowledged; ErrMalformedNotification and
// ErrUnknownTransaction also mean "acknowledge" (redelivery can never help),
// any other error asks the gateway to redeliver.
func (s *ReconcilerService) Handle(ctx context.Context, n Notification) error {
	if n.Type != "payment" {
		metrics.WebhooksTotal.WithLabelValues("ignored").Inc()
		return nil
	}
	if n.Data.ID == "" {
		metrics.WebhooksTotal.WithLabelValues("ignored").Inc()
		return ErrMalformedNotification
	}

	// Re-fetch from the gateway; the notification body is not authenticated
	// end-to-end and must never drive a balance change directly.
	details, err := s.gw.GetPaymentByID(ctx, n.Data.ID)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		metrics.GatewayErrors.WithLabelValues("get_payment", "unavailable").Inc()
		return fmt.Errorf("gateway lookup for %s: %w", n.Data.ID, err)
	}

	tx, err := s.ledger.GetByExternalID(ctx, n.Data.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			metrics.WebhooksTotal.WithLabelValues("error").Inc()
			slog.Warn("notification for payment we never created", "external_payment_id", n.Data.ID)
			return fmt.Errorf("%w: %s", ErrUnknownTransaction, n.Data.ID)
		}
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		return err
	}

	if details.UserID != "" && details.UserID != tx.UserID {
		slog.Warn("gateway metadata user mismatch, trusting ledger",
			"transaction_id", tx.ID, "ledger_user", tx.UserID, "gateway_user", details.UserID)
	}

	status := models.NormalizeStatus(details.Status)

	if tx.Status.IsTerminal() && tx.Status != status {
		// Gateways do not revert terminal states. Keep ours, report the
		// anomaly, acknowledge so the delivery stops.
		metrics.WebhooksTotal.WithLabelValues("conflict").Inc()
		slog.Warn("terminal status conflict",
			"transaction_id", tx.ID, "stored", tx.Status, "incoming", status)
		s.auditLog(ctx, tx.ID, "status_conflict", map[string]any{
			"stored": string(tx.Status), "incoming": string(status),
		})
		return nil
	}

	if tx.Status != status {
		if err := s.ledger.UpdateStatus(ctx, tx.ID, status); err != nil {
			metrics.WebhooksTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("status update for %s: %w", tx.ID, err)
		}
		s.auditLog(ctx, tx.ID, "status_change", map[string]any{
			"from": string(tx.Status), "to": string(status),
		})
	}

	if status != models.TxnApproved {
		metrics.WebhooksTotal.WithLabelValues(string(status)).Inc()
		return nil
	}

	// Exactly-once credit rule: the conditioned flip decides the winner;
	// only the winner increments, everyone else no-ops silently.
	won, err := s.ledger.CasCreditsApplied(ctx, tx.ID)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("credits_applied cas for %s: %w", tx.ID, err)
	}
	if !won {
		metrics.WebhooksTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	if _, err := s.balances.Increment(ctx, tx.UserID, tx.Credits); err != nil {
		// The flip is durable; the credit must follow. Retry off-request so
		// the gateway is not asked to redeliver what it cannot fix.
		slog.Error("balance increment failed, scheduling retry",
			"transaction_id", tx.ID, "user_id", tx.UserID, "err", err)
		s.scheduleIncrementRetry(tx)
		metrics.WebhooksTotal.WithLabelValues("applied").Inc()
		return nil
	}

	metrics.WebhooksTotal.WithLabelValues("applied").Inc()
	metrics.CreditsApplied.Add(float64(tx.Credits))
	s.auditLog(ctx, tx.ID, "credits_applied", map[string]any{
		"user_id": tx.UserID, "credits": tx.Credits,
	})
	slog.Info("credits applied", "transaction_id", tx.ID, "user_id", tx.UserID, "credits", tx.Credits)
	return nil
}

func (s *ReconcilerService) scheduleIncrementRetry(tx models.Transaction) {
	cfg := s.retryCfg
	s.wp.Submit(func() {
		metrics.WorkerQueueDepth.Set(float64(s.wp.Depth()))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		err := retry.Do(ctx, cfg, func(ctx context.Context) error {
			_, err := s.balances.Increment(ctx, tx.UserID, tx.Credits)
			return err
		})
		if err != nil {
			// Last resort: the audit trail is the manual reconciliation queue.
			slog.Error("balance increment exhausted retries, needs manual reconciliation",
				"transaction_id", tx.ID, "user_id", tx.UserID, "credits", tx.Credits, "err", err)
			s.auditLog(ctx, tx.ID, "credit_needs_manual_reconciliation", map[string]any{
				"user_id": tx.UserID, "credits": tx.Credits, "err": err.Error(),
			})
			return
		}
		metrics.CreditsApplied.Add(float64(tx.Credits))
		s.auditLog(ctx, tx.ID, "credits_applied", map[string]any{
			"user_id": tx.UserID, "credits": tx.Credits, "retried": true,
		})
	})
}

func (s *ReconcilerService) auditLog(ctx context.Context, txID, action string, details map[string]any) {
	_ = s.audit.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   &txID,
		Action:     action,
		Details:    details,
	})
}
