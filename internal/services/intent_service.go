package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/baharkarakas/pix-credits/internal/gateway"
	"github.com/baharkarakas/pix-credits/internal/metrics"
	"github.com/baharkarakas/pix-credits/internal/models"
	repo "github.com/baharkarakas/pix-credits/internal/repository"
)

// MinAmountCents is the smallest accepted top-up (5.00 currency units).
const MinAmountCents int64 = 500

// IntentService opens payments with the gateway and writes the pending
// ledger row. It never mutates balances; that is the reconciler's job.
type IntentService struct {
	gw             Gateway
	ledger         repo.Ledger
	users          repo.Users
	audit          repo.AuditLogs
	webhookBaseURL string
	now            func() time.Time
}

func NewIntentService(gw Gateway, ledger repo.Ledger, users repo.Users, audit repo.AuditLogs, webhookBaseURL string) *IntentService {
	return &IntentService{
		gw:             gw,
		ledger:         ledger,
		users:          users,
		audit:          audit,
		webhookBaseURL: webhookBaseURL,
		now:            time.Now,
	}
}

// Intent is what the caller gets back: the ledger row plus the gateway's
// payment instructions. Gateway credentials never appear here.
type Intent struct {
	Transaction  models.Transaction
	Instructions gateway.PaymentInstructions
}

// Create validates the request, opens the payment with the gateway and
// persists the pending transaction. The ledger write happens only after the
// gateway returned an external id, so a timed-out create never leaves a row
// pointing at a payment that may not exist.
func (s *IntentService) Create(ctx context.Context, userID string, amount float64, description string) (Intent, error) {
	amountCents := int64(math.Round(amount * 100))
	if amountCents < MinAmountCents {
		return Intent{}, fmt.Errorf("%w: got %.2f, minimum is %.2f", ErrInvalidAmount, amount, float64(MinAmountCents)/100)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Intent{}, ErrUnauthorized
		}
		return Intent{}, err
	}

	credits := amountCents / 100

	// Timestamp-based on purpose: two concurrent intents from the same user
	// are two distinct payments, not retries of each other.
	idemKey := fmt.Sprintf("%s_%d", userID, s.now().UnixNano())

	externalID, instructions, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentRequest{
		AmountCents:     amountCents,
		Description:     description,
		PayerEmail:      user.Email,
		IdempotencyKey:  idemKey,
		NotificationURL: s.webhookBaseURL + "/webhooks/payments",
		UserID:          userID,
		Credits:         credits,
	})
	if err != nil {
		kind := "rejected"
		if errors.Is(err, gateway.ErrUnavailable) {
			kind = "unavailable"
		}
		metrics.GatewayErrors.WithLabelValues("create_payment", kind).Inc()
		slog.Error("gateway create payment", "user_id", userID, "err", err)
		return Intent{}, err
	}

	tx, err := s.ledger.Create(ctx, models.Transaction{
		UserID:            userID,
		AmountCents:       amountCents,
		Credits:           credits,
		IdempotencyKey:    idemKey,
		ExternalPaymentID: externalID,
		Status:            models.TxnPending,
		Description:       description,
	})
	if err != nil {
		// The payment exists at the gateway but we failed to record it. The
		// webhook for it will surface as UnknownTransaction and point here.
		slog.Error("ledger write after gateway create", "external_payment_id", externalID, "err", err)
		return Intent{}, err
	}

	metrics.IntentsCreated.Inc()
	s.auditLog(ctx, tx.ID, "intent_created", map[string]any{
		"external_payment_id": externalID,
		"amount_cents":        amountCents,
		"credits":             credits,
	})
	return Intent{Transaction: tx, Instructions: instructions}, nil
}

func (s *IntentService) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return s.ledger.GetByID(ctx, id)
}

func (s *IntentService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}

func (s *IntentService) auditLog(ctx context.Context, txID, action string, details map[string]any) {
	_ = s.audit.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   &txID,
		Action:     action,
		Details:    details,
	})
}
