package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kyanz/pos-reservations/internal/audit"
	"go.uber.org/zap"
)

type AuditHandler struct {
	Search audit.Searcher
	Log    *zap.Logger
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit", h.search)
}

func (h *AuditHandler) search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.Search.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
