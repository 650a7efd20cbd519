package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kyanz/pos-reservations/internal/orders"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	OpenOrderID string `json:"openOrderId,omitempty"`
	Product     string `json:"productName,omitempty"`
	Remaining   *int   `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch orders.KindOf(err) {
	case orders.KindValidation:
		return http.StatusBadRequest
	case orders.KindInsufficientStock, orders.KindDuplicateOpenOrder, orders.KindInvalidState:
		return http.StatusConflict
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps business errors to their status; anything else is logged
// and reported as a bare internal error.
func writeError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	code := statusOf(err)
	var e *orders.Error
	if code == http.StatusInternalServerError || !errors.As(err, &e) {
		log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal error", Code: "INTERNAL"})
		return
	}
	body := errorBody{Error: e.Error(), Code: e.Code, OpenOrderID: e.OpenOrderID}
	if e.Kind == orders.KindInsufficientStock {
		body.Product = e.ProductName
		n := e.Remaining
		body.Remaining = &n
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "INVALID_JSON"})
		return false
	}
	return true
}
