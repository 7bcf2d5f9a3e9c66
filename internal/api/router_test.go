package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/pix-credits/internal/api"
	"github.com/baharkarakas/pix-credits/internal/api/handlers"
	"github.com/baharkarakas/pix-credits/internal/auth"
	"github.com/baharkarakas/pix-credits/internal/config"
	"github.com/baharkarakas/pix-credits/internal/gateway"
	"github.com/baharkarakas/pix-credits/internal/middleware"
	"github.com/baharkarakas/pix-credits/internal/models"
	"github.com/baharkarakas/pix-credits/internal/repository/memory"
	"github.com/baharkarakas/pix-credits/internal/services"
	"github.com/baharkarakas/pix-credits/internal/worker"
)

type stubGateway struct {
	createID string
	instr    gateway.PaymentInstructions
	payments map[string]gateway.PaymentDetails
	getErr   error
	valid    bool
}

func (g *stubGateway) CreatePayment(context.Context, gateway.CreatePaymentRequest) (string, gateway.PaymentInstructions, error) {
	return g.createID, g.instr, nil
}

func (g *stubGateway) GetPaymentByID(_ context.Context, id string) (gateway.PaymentDetails, error) {
	if g.getErr != nil {
		return gateway.PaymentDetails{}, g.getErr
	}
	return g.payments[id], nil
}

func (g *stubGateway) ValidateCredentials(context.Context, string) (bool, *gateway.AccountInfo, error) {
	return g.valid, nil, nil
}

type testEnv struct {
	srv   *httptest.Server
	gw    *stubGateway
	repos memory.Repositories
	tm    *auth.TokenManager
	user  models.User
	admin models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gw := &stubGateway{payments: map[string]gateway.PaymentDetails{}}
	repos := memory.NewRepositories()
	wp := worker.NewPool(1)
	t.Cleanup(wp.Stop)

	tm := auth.NewTokenManager("test-secret", "pix-credits", time.Hour)
	cfg := config.Config{Env: "test", RateRPS: 0, WebhookBaseURL: "http://localhost:8080"}

	user, err := repos.Users.Create(context.Background(), "alice", "alice@example.com", "x", "user")
	require.NoError(t, err)
	admin, err := repos.Users.Create(context.Background(), "root", "root@example.com", "x", "admin")
	require.NoError(t, err)

	intentSvc := services.NewIntentService(gw, repos.Ledger, repos.Users, repos.AuditLogs, cfg.WebhookBaseURL)
	reconciler := services.NewReconcilerService(gw, repos.Ledger, repos.Balances, repos.AuditLogs, wp)

	r := api.NewRouter(api.Deps{
		Cfg:        cfg,
		Auth:       middleware.NewAuthMiddleware(tm),
		UserSvc:    services.NewUserService(repos.Users, tm),
		BalanceSvc: services.NewBalanceService(repos.Balances),
		Payments:   handlers.NewPaymentsHandler(intentSvc, reconciler, gw),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, gw: gw, repos: repos, tm: tm, user: user, admin: admin}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreatePaymentEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token, err := e.tm.Generate(e.user.ID, e.user.Role)
	require.NoError(t, err)

	t.Run("requires auth", func(t *testing.T) {
		resp := e.request(t, http.MethodPost, "/api/v1/payments", "", map[string]any{"amount": 20})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("rejects small amounts", func(t *testing.T) {
		resp := e.request(t, http.MethodPost, "/api/v1/payments", token, map[string]any{"amount": 3})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "invalid_amount", body["code"])
	})

	t.Run("returns payment instructions", func(t *testing.T) {
		e.gw.createID = "E1"
		e.gw.instr = gateway.PaymentInstructions{
			QRCode:       "00020126pix",
			QRCodeBase64: "aW1n",
			TicketURL:    "https://pay.example.com/E1",
		}
		resp := e.request(t, http.MethodPost, "/api/v1/payments", token,
			map[string]any{"amount": 20, "description": "top-up"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "E1", body["payment_id"])
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, "00020126pix", body["qr_code"])
		assert.Equal(t, 20.0, body["amount"])
		assert.Equal(t, 20.0, body["credits"])
	})
}

func TestWebhookEndpoint(t *testing.T) {
	webhookBody := func(typ, id string) map[string]any {
		return map[string]any{"type": typ, "data": map[string]any{"id": id}}
	}

	t.Run("approved payment credits balance and acks duplicates", func(t *testing.T) {
		e := newTestEnv(t)
		token, err := e.tm.Generate(e.user.ID, e.user.Role)
		require.NoError(t, err)

		e.gw.createID = "E1"
		resp := e.request(t, http.MethodPost, "/api/v1/payments", token, map[string]any{"amount": 20})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()

		e.gw.payments["E1"] = gateway.PaymentDetails{ExternalID: "E1", Status: "approved", UserID: e.user.ID, Credits: 20}

		resp = e.request(t, http.MethodPost, "/webhooks/payments", "", webhookBody("payment", "E1"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = e.request(t, http.MethodGet, "/api/v1/balances/current", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, 20.0, body["credits"])

		// duplicate delivery acked, balance unchanged
		resp = e.request(t, http.MethodPost, "/webhooks/payments", "", webhookBody("payment", "E1"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = e.request(t, http.MethodGet, "/api/v1/balances/current", token, nil)
		body = decode(t, resp)
		assert.Equal(t, 20.0, body["credits"])
	})

	t.Run("unknown payment acked", func(t *testing.T) {
		e := newTestEnv(t)
		e.gw.payments["E9"] = gateway.PaymentDetails{ExternalID: "E9", Status: "approved", UserID: "ghost"}
		resp := e.request(t, http.MethodPost, "/webhooks/payments", "", webhookBody("payment", "E9"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "ignored", body["status"])
	})

	t.Run("non-payment event acked", func(t *testing.T) {
		e := newTestEnv(t)
		resp := e.request(t, http.MethodPost, "/webhooks/payments", "", webhookBody("plan", "X"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("gateway outage asks for redelivery", func(t *testing.T) {
		e := newTestEnv(t)
		e.gw.getErr = gateway.ErrUnavailable
		resp := e.request(t, http.MethodPost, "/webhooks/payments", "", webhookBody("payment", "E1"))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestAdminCredentialValidation(t *testing.T) {
	e := newTestEnv(t)
	e.gw.valid = true

	userToken, err := e.tm.Generate(e.user.ID, e.user.Role)
	require.NoError(t, err)
	adminToken, err := e.tm.Generate(e.admin.ID, e.admin.Role)
	require.NoError(t, err)

	resp := e.request(t, http.MethodPost, "/api/v1/admin/gateway/credentials", userToken,
		map[string]any{"access_token": "tok"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodPost, "/api/v1/admin/gateway/credentials", adminToken,
		map[string]any{"access_token": "tok"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, true, body["valid"])
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	resp := e.request(t, http.MethodPost, "/api/v1/auth/register",
		"", map[string]any{"username": "bob", "email": "bob@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, http.MethodPost, "/api/v1/auth/login",
		"", map[string]any{"email": "bob@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.NotEmpty(t, body["token"])

	resp = e.request(t, http.MethodPost, "/api/v1/auth/login",
		"", map[string]any{"email": "bob@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
