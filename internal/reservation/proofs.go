package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/metrics"
	"github.com/kyanz/pos-reservations/internal/orders"
	"go.uber.org/zap"
)

// ProofFile is one uploaded payment evidence file.
type ProofFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AcceptsProofType: hanya gambar dan pdf.
func AcceptsProofType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}

func proofName(orderID string, unixMs int64, original string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, original)
	return "proof_" + orderID + "_" + strconv.FormatInt(unixMs, 10) + "_" + clean
}

// AttachProofs stores the accepted files, appends them to the order's proof
// list and returns the appended entries. Files of other types are skipped.
// It does not touch stock.
func (c *Coordinator) AttachProofs(ctx context.Context, by auth.Principal, id string, files []ProofFile) (saved []orders.Proof, err error) {
	defer func() { metrics.RecordOrderOperation("proofs", err) }()

	store, err := c.Blobs.Store()
	if err != nil {
		return nil, orders.StorageUnavailable("File storage not ready. Please retry.")
	}
	o, err := c.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.AcceptsProofs() {
		return nil, orders.InvalidState("PROOFS_NOT_ALLOWED", "Proofs cannot be attached to a cancelled order")
	}

	now := c.now()
	var added []orders.Proof
	for _, f := range files {
		if !AcceptsProofType(f.ContentType) {
			continue
		}
		name := proofName(o.ID, now.UnixMilli(), f.Filename)
		ref, err := store.Put(ctx, f.Data, blob.Meta{
			Filename:    name,
			ContentType: f.ContentType,
			Attrs:       map[string]string{"orderId": o.ID, "kind": "proof", "uploadedBy": by.Actor},
		})
		if err != nil {
			return nil, fmt.Errorf("store proof %s: %w", name, err)
		}
		added = append(added, orders.Proof{
			Ref: ref, Filename: name, ContentType: f.ContentType,
			Size: int64(len(f.Data)), UploadedAt: now, UploadedBy: by.Actor,
		})
	}
	if len(added) == 0 {
		return nil, orders.Validation("NO_FILES", "No files uploaded")
	}

	err = c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.OrderForUpdate(ctx, id)
		if errors.Is(err, orders.ErrNoRows) {
			return orders.NotFound("Order not found")
		}
		if err != nil {
			return err
		}
		if !o.Status.AcceptsProofs() {
			return orders.InvalidState("PROOFS_NOT_ALLOWED", "Proofs cannot be attached to a cancelled order")
		}
		o.Proofs = append(o.Proofs, added...)
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, &o); err != nil {
			return fmt.Errorf("update order %s: %w", o.ID, err)
		}
		return nil
	})
	if err != nil {
		c.log().Warn("proof files orphaned", zap.String("order_id", id), zap.Int("count", len(added)), zap.Error(err))
		return nil, err
	}

	c.emit(ctx, by, audit.ActionProofUpload, id, map[string]any{"count": len(added)})
	return added, nil
}
