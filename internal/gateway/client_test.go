package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/pix-credits/internal/gateway"
)

func TestClient_CreatePayment(t *testing.T) {
	var gotBody map[string]any
	var gotIdemKey, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payments", r.URL.Path)
		gotIdemKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "pending",
			"transaction_amount": 20,
			"point_of_interaction": {
				"transaction_data": {
					"qr_code": "00020126pix",
					"qr_code_base64": "aW1n",
					"ticket_url": "https://pay.example.com/123456789"
				}
			}
		}`))
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "tok-1")
	externalID, instr, err := c.CreatePayment(context.Background(), gateway.CreatePaymentRequest{
		AmountCents:     2000,
		Description:     "credit top-up",
		PayerEmail:      "alice@example.com",
		IdempotencyKey:  "user-1_42",
		NotificationURL: "https://api.example.com/webhooks/payments",
		UserID:          "user-1",
		Credits:         20,
	})
	require.NoError(t, err)

	assert.Equal(t, "123456789", externalID)
	assert.Equal(t, "00020126pix", instr.QRCode)
	assert.Equal(t, "aW1n", instr.QRCodeBase64)
	assert.Equal(t, "https://pay.example.com/123456789", instr.TicketURL)

	assert.Equal(t, "user-1_42", gotIdemKey)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "pix", gotBody["payment_method_id"])
	assert.Equal(t, 20.0, gotBody["transaction_amount"])
	assert.Equal(t, "https://api.example.com/webhooks/payments", gotBody["notification_url"])
	payer := gotBody["payer"].(map[string]any)
	assert.Equal(t, "alice@example.com", payer["email"])
	meta := gotBody["metadata"].(map[string]any)
	assert.Equal(t, "user-1", meta["user_id"])
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"4xx is a rejection", http.StatusBadRequest, `{"message":"invalid payer"}`, gateway.ErrRejected, "invalid payer"},
		{"401 is a rejection", http.StatusUnauthorized, `{"message":"invalid token"}`, gateway.ErrRejected, "invalid token"},
		{"5xx is retryable", http.StatusInternalServerError, `{"message":"boom"}`, gateway.ErrUnavailable, "boom"},
		{"503 is retryable", http.StatusServiceUnavailable, ``, gateway.ErrUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := gateway.NewClient(srv.URL, "tok")
			_, err := c.GetPaymentByID(context.Background(), "E1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var apiErr *gateway.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			if tt.wantMsg != "" {
				assert.Contains(t, apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := gateway.NewClient(srv.URL, "tok")
	_, err := c.GetPaymentByID(context.Background(), "E1")
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestClient_GetPaymentByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/3001", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": 3001,
			"status": "approved",
			"metadata": {"user_id": "user-1", "credits": 20}
		}`))
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "tok")
	details, err := c.GetPaymentByID(context.Background(), "3001")
	require.NoError(t, err)
	assert.Equal(t, "3001", details.ExternalID)
	assert.Equal(t, "approved", details.Status)
	assert.Equal(t, "user-1", details.UserID)
	assert.Equal(t, int64(20), details.Credits)
}

func TestClient_ValidateCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/me", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid access token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": 42, "nickname": "STORE", "email": "store@example.com", "site_id": "MLB"}`))
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "config-token")

	valid, account, err := c.ValidateCredentials(context.Background(), "good-token")
	require.NoError(t, err)
	assert.True(t, valid)
	require.NotNil(t, account)
	assert.Equal(t, "STORE", account.Nickname)
	assert.Equal(t, "MLB", account.SiteID)

	valid, account, err = c.ValidateCredentials(context.Background(), "bad-token")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Nil(t, account)
}
