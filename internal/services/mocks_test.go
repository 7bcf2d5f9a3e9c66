package services_test

import (
	"context"
	"sync"

	"github.com/baharkarakas/pix-credits/internal/gateway"
)

// fakeGateway is a scriptable in-process stand-in for the payment provider.
type fakeGateway struct {
	mu sync.Mutex

	createCalls int
	createReq   gateway.CreatePaymentRequest
	createID    string
	createInstr gateway.PaymentInstructions
	createErr   error

	getCalls int
	payments map[string]gateway.PaymentDetails
	getErr   error

	validateOK   bool
	validateInfo *gateway.AccountInfo
	validateErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]gateway.PaymentDetails{}}
}

func (g *fakeGateway) CreatePayment(_ context.Context, req gateway.CreatePaymentRequest) (string, gateway.PaymentInstructions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.createReq = req
	if g.createErr != nil {
		return "", gateway.PaymentInstructions{}, g.createErr
	}
	return g.createID, g.createInstr, nil
}

func (g *fakeGateway) GetPaymentByID(_ context.Context, externalID string) (gateway.PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return gateway.PaymentDetails{}, g.getErr
	}
	return g.payments[externalID], nil
}

func (g *fakeGateway) ValidateCredentials(_ context.Context, _ string) (bool, *gateway.AccountInfo, error) {
	return g.validateOK, g.validateInfo, g.validateErr
}

func (g *fakeGateway) setPayment(d gateway.PaymentDetails) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[d.ExternalID] = d
}
