package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/inventory"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	Inventory *inventory.Service
	Log       *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.With(Require(auth.ActionProductManage)).Post("/products", h.create)
	r.With(Require(auth.ActionProductManage)).Patch("/products/{id}", h.patch)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Inventory.List(r.Context())
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewProduct
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Inventory.Create(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) patch(w http.ResponseWriter, r *http.Request) {
	var req inventory.ProductPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Inventory.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
