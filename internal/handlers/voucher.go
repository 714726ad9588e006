package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
	"github.com/zenobundle/zenobundle-gobackend/internal/models"
	"github.com/zenobundle/zenobundle-gobackend/internal/services"
)

// VoucherHandler serves the admin voucher-stock endpoints.
type VoucherHandler struct {
	service   *services.VoucherService
	jwtSecret string
}

func NewVoucherHandler(service *services.VoucherService, jwtSecret string) *VoucherHandler {
	return &VoucherHandler{service: service, jwtSecret: jwtSecret}
}

type voucherLoadRequest struct {
	Vouchers []struct {
		Code    string `json:"code"`
		Package string `json:"package"`
		Network string `json:"network"`
	} `json:"vouchers"`
}

// LoadVouchers handles POST /api/vouchers: bulk-insert available stock.
func (h *VoucherHandler) LoadVouchers(w http.ResponseWriter, r *http.Request) {
	if !authorizeAdmin(w, r, h.jwtSecret) {
		return
	}

	var req voucherLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Vouchers) == 0 {
		http.Error(w, `{"error":"vouchers list is required"}`, http.StatusBadRequest)
		return
	}

	vouchers := make([]models.Voucher, 0, len(req.Vouchers))
	for i, v := range req.Vouchers {
		code := strings.TrimSpace(v.Code)
		pkg := strings.TrimSpace(v.Package)
		network := strings.TrimSpace(v.Network)
		if code == "" || pkg == "" || network == "" {
			http.Error(w, fmt.Sprintf(`{"error":"voucher %d: code, package and network are required"}`, i), http.StatusBadRequest)
			return
		}
		vouchers = append(vouchers, models.Voucher{Code: code, Package: pkg, Network: network})
	}

	loaded, err := h.service.Load(r.Context(), vouchers)
	if err != nil {
		logging.Logger.Errorf("Failed to load vouchers: %v", err)
		http.Error(w, `{"error":"Failed to load vouchers"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int{"loaded": loaded})
}

// ListVouchers handles GET /api/vouchers with an optional status filter.
func (h *VoucherHandler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	if !authorizeAdmin(w, r, h.jwtSecret) {
		return
	}

	vouchers, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, services.ErrBadEvent) {
			http.Error(w, fmt.Sprintf(`{"error":"%v"}`, err), http.StatusBadRequest)
			return
		}
		logging.Logger.Errorf("Failed to fetch vouchers: %v", err)
		http.Error(w, `{"error":"Failed to fetch vouchers"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(vouchers); err != nil {
		logging.Logger.Errorf("Failed to encode vouchers: %v", err)
	}
}
