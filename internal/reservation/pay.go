package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/metrics"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/kyanz/pos-reservations/internal/receipt"
	"go.uber.org/zap"
)

type PayRequest struct {
	Method string `json:"method"`
}

// Pay seals a reserved order: the receipt is rendered and stored first, then
// the reservations are consumed and the order is marked paid in the same tx.
// Stock is not moved.
func (c *Coordinator) Pay(ctx context.Context, by auth.Principal, id string, req PayRequest) (order orders.Order, err error) {
	defer func() { metrics.RecordOrderOperation("pay", err) }()

	if err := c.Issuer.Ready(); err != nil {
		return orders.Order{}, err
	}

	var (
		out    orders.Order
		stored []string
	)
	err = c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := lockOrder(ctx, tx, id, orders.StatusPaid, func(from orders.Status) error {
			return orders.InvalidState("NOT_PAYABLE", fmt.Sprintf("Cannot pay a %s order", from))
		})
		if err != nil {
			return err
		}
		method, ok := orders.NormalizePaymentMethod(req.Method)
		if !ok {
			return orders.Validation(orders.ErrInvalidPaymentMethod.Code, "Invalid payment method")
		}

		at := c.now()
		no, err := c.Numbers.Next(ctx, at)
		if err != nil {
			return fmt.Errorf("allocate receipt number: %w", err)
		}
		ref, err := c.Issuer.Issue(ctx, receipt.FromOrder(o, by.Actor, method, no, at))
		if err != nil {
			return err
		}
		stored = append(stored, ref)

		if err := c.Ledger.ConsumeOrder(ctx, tx, o); err != nil {
			return err
		}

		o.Status = orders.StatusPaid
		o.Payment = orders.Payment{Method: method, PaidAt: &at, PaidBy: by.Actor}
		o.Receipt = orders.Receipt{ReceiptNo: no, ArtifactRef: ref}
		if o.ShareToken == "" {
			if o.ShareToken, err = c.token(); err != nil {
				return err
			}
		}
		o.UpdatedAt = at
		if err := tx.UpdateOrder(ctx, &o); err != nil {
			return fmt.Errorf("update order %s: %w", o.ID, err)
		}
		out = o
		return nil
	})
	if err != nil {
		if len(stored) > 0 {
			// blob store has no delete; artifact stays unreferenced
			c.log().Warn("receipt artifact orphaned", zap.String("order_id", id), zap.Strings("refs", stored), zap.Error(err))
		}
		return orders.Order{}, err
	}

	c.emit(ctx, by, audit.ActionOrderPaidReceipt, out.ID, map[string]any{
		"receiptNo":   out.Receipt.ReceiptNo,
		"artifactRef": out.Receipt.ArtifactRef,
		"method":      out.Payment.Method,
	})
	c.emit(ctx, auth.System, audit.ActionEmailPlaceholder, out.ID, map[string]any{
		"to":   out.Email,
		"note": "Email sending not configured yet.",
	})
	return out, nil
}

// PublicReceipt opens the receipt artifact of the order holding token.
func (c *Coordinator) PublicReceipt(ctx context.Context, token string) (orders.Order, blob.Object, error) {
	o, err := c.Store.OrderByShareToken(ctx, token)
	if errors.Is(err, orders.ErrNoRows) {
		return orders.Order{}, blob.Object{}, orders.NotFound("Receipt not found")
	}
	if err != nil {
		return orders.Order{}, blob.Object{}, err
	}
	if o.Receipt.ArtifactRef == "" {
		return orders.Order{}, blob.Object{}, orders.NotFound("Receipt not found")
	}
	obj, err := c.OpenFile(ctx, o.Receipt.ArtifactRef)
	if err != nil {
		return orders.Order{}, blob.Object{}, err
	}
	return o, obj, nil
}

// OpenFile streams a stored blob by reference. The caller closes Body.
func (c *Coordinator) OpenFile(ctx context.Context, ref string) (blob.Object, error) {
	store, err := c.Blobs.Store()
	if err != nil {
		return blob.Object{}, orders.StorageUnavailable("File storage not ready. Please retry.")
	}
	obj, err := store.Get(ctx, ref)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Object{}, orders.NotFound("File not found")
	}
	if err != nil {
		return blob.Object{}, fmt.Errorf("open file %s: %w", ref, err)
	}
	return obj, nil
}
