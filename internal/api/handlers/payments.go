package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/pix-credits/internal/api/httpx"
	"github.com/baharkarakas/pix-credits/internal/middleware"
	"github.com/baharkarakas/pix-credits/internal/models"
	"github.com/baharkarakas/pix-credits/internal/services"
)

type PaymentsHandler struct {
	Intents    *services.IntentService
	Reconciler *services.ReconcilerService
	Gateway    services.Gateway
}

func NewPaymentsHandler(is *services.IntentService, rs *services.ReconcilerService, gw services.Gateway) *PaymentsHandler {
	return &PaymentsHandler{Intents: is, Reconciler: rs, Gateway: gw}
}

type createIntentResponse struct {
	PaymentID    string  `json:"payment_id"`
	Status       string  `json:"status"`
	QRCode       string  `json:"qr_code,omitempty"`
	QRCodeBase64 string  `json:"qr_code_base64,omitempty"`
	TicketURL    string  `json:"ticket_url,omitempty"`
	Amount       float64 `json:"amount"`
	Credits      int64   `json:"credits"`
}

func (h *PaymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
		return
	}
	var req struct {
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}

	intent, err := h.Intents.Create(r.Context(), uid, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
		case errors.Is(err, services.ErrUnauthorized):
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unknown user", nil)
		default:
			// gateway or store failure; the provider message is safe to relay
			httpx.WriteError(w, http.StatusInternalServerError, "payment_failed", err.Error(), nil)
		}
		return
	}

	tx := intent.Transaction
	httpx.WriteJSON(w, http.StatusCreated, createIntentResponse{
		PaymentID:    tx.ExternalPaymentID,
		Status:       string(tx.Status),
		QRCode:       intent.Instructions.QRCode,
		QRCodeBase64: intent.Instructions.QRCodeBase64,
		TicketURL:    intent.Instructions.TicketURL,
		Amount:       float64(tx.AmountCents) / 100,
		Credits:      tx.Credits,
	})
}

func (h *PaymentsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	tx, err := h.Intents.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || tx.UserID != uid {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *PaymentsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserID(r.Context())
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	txs, err := h.Intents.ListByUser(r.Context(), uid, limit, offset)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

// Webhook receives gateway notifications. It answers 200 for everything the
// reconciler settled, including deliveries that can never succeed (malformed,
// unknown payment), and non-200 only when redelivery has a chance of working.
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var n services.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		slog.Warn("undecodable webhook body", "err", err)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	err := h.Reconciler.Handle(r.Context(), n)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, services.ErrMalformedNotification),
		errors.Is(err, services.ErrUnknownTransaction):
		slog.Warn("webhook dropped", "err", err)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		slog.Error("webhook processing failed, requesting redelivery", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "retry_later", "temporary failure", nil)
	}
}

// ValidateCredentials lets an admin probe a gateway access token.
func (h *PaymentsHandler) ValidateCredentials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "access_token required", nil)
		return
	}
	valid, account, err := h.Gateway.ValidateCredentials(r.Context(), req.AccessToken)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "gateway_error", err.Error(), nil)
		return
	}
	resp := map[string]any{"valid": valid}
	if account != nil {
		resp["account"] = account
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
