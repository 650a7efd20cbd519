package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/orders"
)

// Issuer renders a receipt and stores it. It never touches the order; the
// caller attaches the returned reference.
type Issuer struct {
	Renderer Renderer
	Blobs    *blob.Handle
}

// Ready reports whether Issue can currently store artifacts.
func (i *Issuer) Ready() error {
	if _, err := i.Blobs.Store(); err != nil {
		return orders.StorageUnavailable("Receipt storage not ready. Please retry.")
	}
	return nil
}

func (i *Issuer) Issue(ctx context.Context, d Document) (string, error) {
	store, err := i.Blobs.Store()
	if errors.Is(err, blob.ErrNotReady) {
		return "", orders.StorageUnavailable("Receipt storage not ready. Please retry.")
	}
	if err != nil {
		return "", err
	}
	data, err := i.Renderer.Render(d)
	if err != nil {
		return "", fmt.Errorf("render receipt %s: %w", d.ReceiptNo, err)
	}
	ref, err := store.Put(ctx, data, blob.Meta{
		Filename:    "receipt_" + d.ReceiptNo + i.Renderer.Extension(),
		ContentType: i.Renderer.ContentType(),
		Attrs: map[string]string{
			"orderId":   d.OrderID,
			"kind":      "receipt",
			"receiptNo": d.ReceiptNo,
			"createdBy": d.Cashier,
		},
	})
	if err != nil {
		return "", fmt.Errorf("store receipt %s: %w", d.ReceiptNo, err)
	}
	return ref, nil
}
