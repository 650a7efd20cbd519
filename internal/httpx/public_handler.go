package httpx

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kyanz/pos-reservations/internal/reservation"
	"go.uber.org/zap"
)

// PublicHandler serves receipts by share token without authentication.
type PublicHandler struct {
	Orders *reservation.Coordinator
	Log    *zap.Logger
}

func (h *PublicHandler) Register(r chi.Router) {
	r.Get("/r/{token}", h.receipt)
}

func (h *PublicHandler) receipt(w http.ResponseWriter, r *http.Request) {
	o, obj, err := h.Orders.PublicReceipt(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		code := statusOf(err)
		switch code {
		case http.StatusNotFound:
			http.Error(w, "Receipt not found", code)
		case http.StatusServiceUnavailable:
			http.Error(w, "Receipt storage not ready", code)
		default:
			h.Log.Error("public receipt failed", zap.Error(err))
			http.Error(w, "Receipt read error", http.StatusInternalServerError)
		}
		return
	}
	defer obj.Body.Close()

	no := o.Receipt.ReceiptNo
	if no == "" {
		no = "receipt"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"KYANZ_Receipt_%s.pdf\"", no))
	w.Header().Set("Cache-Control", "no-store")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.Log.Warn("receipt stream aborted", zap.String("order_id", o.ID), zap.Error(err))
	}
}
