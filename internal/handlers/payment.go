package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
	"github.com/zenobundle/zenobundle-gobackend/internal/services"
	"github.com/zenobundle/zenobundle-gobackend/internal/status"
	"github.com/zenobundle/zenobundle-gobackend/internal/zenopay"
)

// OrderSubmitter is the outbound gateway call the initiation flow makes.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, order zenopay.OrderRequest) error
}

// StatusReconciler is the pull path used by the manual status query.
type StatusReconciler interface {
	PollAndReconcile(ctx context.Context, orderID string) (*zenopay.Snapshot, *services.Outcome, error)
}

// TransactionStore is the slice of the transaction adapter the payment
// endpoints use.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	MergeUpdate(ctx context.Context, orderID string, patch services.TxnPatch, guard []status.Status) (*models.Transaction, bool, error)
	List(ctx context.Context, statusFilter, startDate, endDate *string) ([]models.Transaction, error)
}

// PaymentHandler serves initiation, the manual status query and the admin
// transaction listing.
type PaymentHandler struct {
	txns      TransactionStore
	recon     StatusReconciler
	gateway   OrderSubmitter
	jwtSecret string
}

func NewPaymentHandler(txns TransactionStore, recon StatusReconciler, gateway OrderSubmitter, jwtSecret string) *PaymentHandler {
	return &PaymentHandler{txns: txns, recon: recon, gateway: gateway, jwtSecret: jwtSecret}
}

type orderRequest struct {
	Phone      string `json:"phone"`
	Amount     int64  `json:"amount"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	CustomerID string `json:"customer_id"`
	Package    string `json:"package"`
	Network    string `json:"network"`
}

// CreateOrder handles POST /api/order: persist an INITIATED transaction,
// submit the order to the gateway, then write through the gateway's answer
// as PENDING or FAILED.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.BuyerName = strings.TrimSpace(req.BuyerName)
	req.BuyerEmail = strings.TrimSpace(req.BuyerEmail)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Package = strings.TrimSpace(req.Package)
	req.Network = strings.TrimSpace(req.Network)

	if req.Phone == "" || req.BuyerName == "" || req.BuyerEmail == "" || req.CustomerID == "" {
		http.Error(w, `{"error":"phone, buyer_name, buyer_email and customer_id are required"}`, http.StatusBadRequest)
		return
	}
	if req.Package == "" || req.Network == "" {
		http.Error(w, `{"error":"package and network are required"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"Amount must be positive"}`, http.StatusBadRequest)
		return
	}

	txn := &models.Transaction{
		OrderID:    uuid.NewString(),
		Phone:      req.Phone,
		BuyerName:  req.BuyerName,
		BuyerEmail: req.BuyerEmail,
		CustomerID: req.CustomerID,
		Package:    req.Package,
		Network:    req.Network,
		Amount:     req.Amount,
		Status:     string(status.Initiated),
	}
	if err := h.txns.Create(r.Context(), txn); err != nil {
		logging.Logger.Errorf("Failed to create transaction: %v", err)
		http.Error(w, `{"error":"Failed to create transaction"}`, http.StatusInternalServerError)
		return
	}

	err := h.gateway.SubmitOrder(r.Context(), zenopay.OrderRequest{
		OrderID:    txn.OrderID,
		BuyerName:  txn.BuyerName,
		BuyerPhone: txn.Phone,
		BuyerEmail: txn.BuyerEmail,
		Amount:     txn.Amount,
	})
	if err != nil {
		logging.Logger.Errorf("Order submission failed for %s: %v", txn.OrderID, err)
		if _, _, uerr := h.txns.MergeUpdate(r.Context(), txn.OrderID, services.TxnPatch{Status: status.Failed}, nil); uerr != nil {
			logging.Logger.Errorf("Failed to mark order %s FAILED: %v", txn.OrderID, uerr)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"error":    "order submission failed",
			"order_id": txn.OrderID,
		})
		return
	}

	if _, _, err := h.txns.MergeUpdate(r.Context(), txn.OrderID, services.TxnPatch{Status: status.Pending}, nil); err != nil {
		logging.Logger.Errorf("Failed to mark order %s PENDING: %v", txn.OrderID, err)
		http.Error(w, `{"error":"Failed to update transaction"}`, http.StatusInternalServerError)
		return
	}
	txn.Status = string(status.Pending)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(txn); err != nil {
		logging.Logger.Errorf("Failed to encode transaction: %v", err)
	}
}

// GetStatus handles GET /status/{order_id}. Vendor-side failures never turn
// into a 5xx here: the caller always gets a snapshot, worst case UNKNOWN
// with an error field.
func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	if orderID == "" {
		http.Error(w, `{"error":"order_id is required"}`, http.StatusBadRequest)
		return
	}

	snap, _, err := h.recon.PollAndReconcile(r.Context(), orderID)
	if err != nil && !errors.Is(err, services.ErrTransactionNotFound) {
		if errors.Is(err, services.ErrBadEvent) {
			http.Error(w, `{"error":"invalid order_id"}`, http.StatusBadRequest)
			return
		}
		logging.Logger.Errorf("Status query failed for %s: %v", orderID, err)
		http.Error(w, fmt.Sprintf(`{"error":"status query failed: %v"}`, err), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"order_id": orderID,
		"status":   snap.Status,
		"details": map[string]string{
			"raw_status":        snap.RawStatus,
			"transaction_ref":   snap.TransactionRef,
			"confirmation_code": snap.ConfirmationCode,
			"payment_method":    snap.PaymentMethod,
			"channel":           snap.Channel,
		},
	}
	if snap.Error != "" {
		response["error"] = snap.Error
	}
	if errors.Is(err, services.ErrTransactionNotFound) {
		response["error"] = "no local transaction for this order"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ListTransactions handles GET /api/transactions with optional status and
// date-range filters. Admin only.
func (h *PaymentHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if !authorizeAdmin(w, r, h.jwtSecret) {
		return
	}

	statusFilter := r.URL.Query().Get("status")
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	var statusPtr, startDatePtr, endDatePtr *string
	if statusFilter != "" {
		statusPtr = &statusFilter
	}
	if startDate != "" {
		startDatePtr = &startDate
	}
	if endDate != "" {
		endDatePtr = &endDate
	}

	txns, err := h.txns.List(r.Context(), statusPtr, startDatePtr, endDatePtr)
	if err != nil {
		if errors.Is(err, services.ErrBadEvent) {
			http.Error(w, fmt.Sprintf(`{"error":"%v"}`, err), http.StatusBadRequest)
			return
		}
		logging.Logger.Errorf("Failed to fetch transactions: %v", err)
		http.Error(w, `{"error":"Failed to fetch transactions"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(txns); err != nil {
		logging.Logger.Errorf("Failed to encode transactions: %v", err)
	}
}
