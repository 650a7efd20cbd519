package httpx

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/kyanz/pos-reservations/internal/reservation"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Orders *reservation.Coordinator
	Log    *zap.Logger

	MaxUploadBytes int64
	MaxUploadFiles int
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.With(Require(auth.ActionOrderCreate)).Post("/orders", h.create)
	r.With(Require(auth.ActionOrderEdit)).Patch("/orders/{id}", h.edit)
	r.With(Require(auth.ActionOrderCancel)).Post("/orders/{id}/cancel", h.cancel)
	r.With(Require(auth.ActionOrderPay)).Post("/orders/{id}/pay", h.pay)
	r.With(Require(auth.ActionOrderProofs)).Post("/orders/{id}/proofs", h.proofs)
	r.With(Require(auth.ActionEndOfDay)).Post("/endofday/cancel-unpaid", h.endOfDay)
	r.Get("/files/{ref}", h.file)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.Orders.ListOrders(r.Context(), orders.Filter{
		Status: orders.Status(q.Get("status")),
		Query:  q.Get("q"),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req reservation.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.Orders.Create(r.Context(), principal(r), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) edit(w http.ResponseWriter, r *http.Request) {
	var req reservation.EditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.Orders.Edit(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Orders.Cancel(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	var req reservation.PayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.Orders.Pay(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"receiptNo":   o.Receipt.ReceiptNo,
		"artifactRef": o.Receipt.ArtifactRef,
		"shareUrl":    "/r/" + o.ShareToken,
	})
}

func (h *OrdersHandler) endOfDay(w http.ResponseWriter, r *http.Request) {
	n, err := h.Orders.EndOfDay(r.Context(), principal(r))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cancelled": n})
}

var errUpload = errors.New("upload rejected")

// readProofs streams the "files" parts, enforcing the per-file size and the
// file count before anything reaches the blob store.
func (h *OrdersHandler) readProofs(w http.ResponseWriter, r *http.Request) ([]reservation.ProofFile, error) {
	maxFiles := h.MaxUploadFiles
	if maxFiles <= 0 {
		maxFiles = 10
	}
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*maxBytes+maxJSONBody)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, orders.Validation("INVALID_UPLOAD", "Expected multipart/form-data")
	}

	var files []reservation.ProofFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, orders.Validation("INVALID_UPLOAD", "Malformed upload")
		}
		if part.FormName() != "files" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if len(files) == maxFiles {
			return nil, orders.Validation("TOO_MANY_FILES", fmt.Sprintf("At most %d files per upload", maxFiles))
		}
		data, err := readPart(part, maxBytes)
		if err != nil {
			return nil, err
		}
		files = append(files, reservation.ProofFile{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if len(files) == 0 {
		return nil, orders.Validation("NO_FILES", "No files uploaded")
	}
	return files, nil
}

func readPart(p *multipart.Part, max int64) ([]byte, error) {
	defer p.Close()
	data, err := io.ReadAll(io.LimitReader(p, max+1))
	if err != nil {
		return nil, orders.Validation("INVALID_UPLOAD", "Malformed upload")
	}
	if int64(len(data)) > max {
		return nil, orders.Validation("FILE_TOO_LARGE", fmt.Sprintf("%s exceeds %d bytes", p.FileName(), max))
	}
	return data, nil
}

func (h *OrdersHandler) proofs(w http.ResponseWriter, r *http.Request) {
	files, err := h.readProofs(w, r)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	saved, err := h.Orders.AttachProofs(r.Context(), principal(r), chi.URLParam(r, "id"), files)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "saved": saved})
}

func (h *OrdersHandler) file(w http.ResponseWriter, r *http.Request) {
	obj, err := h.Orders.OpenFile(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	defer obj.Body.Close()

	ct := obj.Meta.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	name := obj.Meta.Filename
	if name == "" {
		name = "file"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.Log.Warn("file stream aborted", zap.String("ref", chi.URLParam(r, "ref")), zap.Error(err))
	}
}
