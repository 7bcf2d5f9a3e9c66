// Package gateway is the typed wrapper around the external PIX payment
// provider. It only translates requests and maps failures; it holds no state
// beyond the HTTP client and credentials.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnavailable covers transport failures, timeouts and provider 5xx
	// responses. Callers may retry.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrRejected covers provider 4xx responses. Retrying the same request
	// will not help.
	ErrRejected = errors.New("gateway rejected request")
)

// APIError carries the provider's own message alongside the retryability
// classification.
type APIError struct {
	kind       error
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.kind }

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CreatePaymentRequest opens a PIX payment with the provider. The metadata is
// echoed back by GetPaymentByID and lets the reconciler cross-check what the
// intent was created for.
type CreatePaymentRequest struct {
	AmountCents    int64
	Description    string
	PayerEmail     string
	IdempotencyKey string
	NotificationURL string
	UserID         string
	Credits        int64
}

// PaymentInstructions is what the caller needs to actually pay: the PIX copy
// and paste payload, its rendered QR image and the hosted checkout link.
type PaymentInstructions struct {
	QRCode       string
	QRCodeBase64 string
	TicketURL    string
}

type createPaymentBody struct {
	TransactionAmount float64        `json:"transaction_amount"`
	Description       string         `json:"description,omitempty"`
	PaymentMethodID   string         `json:"payment_method_id"`
	NotificationURL   string         `json:"notification_url"`
	Payer             paymentPayer   `json:"payer"`
	Metadata          map[string]any `json:"metadata"`
}

type paymentPayer struct {
	Email string `json:"email"`
}

type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	TransactionAmount  float64     `json:"transaction_amount"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
	Metadata struct {
		UserID  string `json:"user_id"`
		Credits int64  `json:"credits"`
	} `json:"metadata"`
}

// CreatePayment opens the payment and returns the provider-assigned id plus
// the payment instructions for the end user.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (string, PaymentInstructions, error) {
	body := createPaymentBody{
		TransactionAmount: float64(req.AmountCents) / 100,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		NotificationURL:   req.NotificationURL,
		Payer:             paymentPayer{Email: req.PayerEmail},
		Metadata:          map[string]any{"user_id": req.UserID, "credits": req.Credits},
	}
	var resp paymentResponse
	err := c.do(ctx, http.MethodPost, "/v1/payments", req.IdempotencyKey, body, &resp)
	if err != nil {
		return "", PaymentInstructions{}, err
	}
	td := resp.PointOfInteraction.TransactionData
	return resp.ID.String(), PaymentInstructions{
		QRCode:       td.QRCode,
		QRCodeBase64: td.QRCodeBase64,
		TicketURL:    td.TicketURL,
	}, nil
}

// PaymentDetails is the authoritative state of a payment as the provider
// reports it right now.
type PaymentDetails struct {
	ExternalID string
	Status     string
	UserID     string
	Credits    int64
}

func (c *Client) GetPaymentByID(ctx context.Context, externalID string) (PaymentDetails, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+externalID, "", nil, &resp); err != nil {
		return PaymentDetails{}, err
	}
	return PaymentDetails{
		ExternalID: resp.ID.String(),
		Status:     resp.Status,
		UserID:     resp.Metadata.UserID,
		Credits:    resp.Metadata.Credits,
	}, nil
}

// AccountInfo is the subset of the provider account exposed to admins when
// validating credentials.
type AccountInfo struct {
	ID       json.Number `json:"id"`
	Nickname string      `json:"nickname"`
	Email    string      `json:"email"`
	SiteID   string      `json:"site_id"`
}

// ValidateCredentials checks an access token against the provider. A rejected
// token yields (false, nil, nil); only infrastructure failures error.
func (c *Client) ValidateCredentials(ctx context.Context, accessToken string) (bool, *AccountInfo, error) {
	probe := &Client{baseURL: c.baseURL, accessToken: accessToken, httpClient: c.httpClient}
	var info AccountInfo
	err := probe.do(ctx, http.MethodGet, "/users/me", "", nil, &info)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, &info, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var buf io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{kind: ErrUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := ErrRejected
		if resp.StatusCode >= 500 {
			kind = ErrUnavailable
		}
		return &APIError{kind: kind, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{kind: ErrUnavailable, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable error body"
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(raw)
}
