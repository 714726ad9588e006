package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/services"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
)

// Reconciler is the controller surface the webhook forwards into.
type Reconciler interface {
	Reconcile(ctx context.Context, ev services.Event) (*services.Outcome, error)
}

// WebhookHandler receives push notifications from the payment gateway.
type WebhookHandler struct {
	service Reconciler
	apiKey  string
}

func NewWebhookHandler(service Reconciler, apiKey string) *WebhookHandler {
	return &WebhookHandler{service: service, apiKey: apiKey}
}

// webhookPayload is the gateway's notification body. Several fields have
// two spellings depending on the gateway configuration; the fallback chains
// below are a deliberate merge policy, not permissiveness.
type webhookPayload struct {
	OrderID                  string `json:"order_id"`
	PaymentStatusDescription string `json:"payment_status_description"`
	PaymentStatus            string `json:"payment_status"`
	Result                   string `json:"result"`
	PaymentMethod            string `json:"payment_method"`
	ConfirmationCode         string `json:"confirmation_code"`
	Reference                string `json:"reference"`
	Channel                  string `json:"channel"`
	TransID                  string `json:"transid"`
	TransactionID            string `json:"transaction_id"`
}

// Receive handles POST /api/payment/webhook. Status codes are the
// gateway's redelivery contract: 400 must not be retried, 500 should be.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("x-api-key")
	// An absent header is just another wrong key.
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
		http.Error(w, `{"error":"Unauthorized webhook"}`, http.StatusForbidden)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"Invalid webhook payload"}`, http.StatusBadRequest)
		return
	}

	rawStatus := payload.PaymentStatusDescription
	if rawStatus == "" {
		rawStatus = payload.PaymentStatus
	}
	if payload.OrderID == "" || rawStatus == "" {
		http.Error(w, `{"error":"order_id and payment status are required"}`, http.StatusBadRequest)
		return
	}

	confirmation := payload.ConfirmationCode
	if confirmation == "" {
		confirmation = payload.Reference
	}
	transRef := payload.TransID
	if transRef == "" {
		transRef = payload.TransactionID
	}

	ev := services.Event{
		OrderID:          payload.OrderID,
		Status:           status.Normalize(rawStatus, payload.Result),
		RawStatus:        rawStatus,
		PaymentMethod:    payload.PaymentMethod,
		Channel:          payload.Channel,
		ConfirmationCode: confirmation,
		TransactionRef:   transRef,
		Source:           services.SourceWebhook,
	}

	if _, err := h.service.Reconcile(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, services.ErrBadEvent), errors.Is(err, services.ErrTransactionNotFound):
			logging.Logger.Infof("Webhook rejected for order %s: %v", payload.OrderID, err)
			http.Error(w, `{"error":"unknown or malformed order"}`, http.StatusBadRequest)
		default:
			logging.Logger.Errorf("Webhook processing failed for order %s: %v", payload.OrderID, err)
			http.Error(w, `{"error":"internal failure, please retry"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "received",
		"order_id": payload.OrderID,
	})
}
