package services

import (
	"context"

	"github.com/baharkarakas/pix-credits/internal/gateway"
)

// Gateway is the slice of the payment provider client the services need.
// *gateway.Client satisfies it; tests substitute fakes.
type Gateway interface {
	CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (string, gateway.PaymentInstructions, error)
	GetPaymentByID(ctx context.Context, externalID string) (gateway.PaymentDetails, error)
	ValidateCredentials(ctx context.Context, accessToken string) (bool, *gateway.AccountInfo, error)
}
