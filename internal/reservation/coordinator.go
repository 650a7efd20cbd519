// Package reservation runs the order lifecycle: every transition that moves
// stock happens in one store transaction together with the order write.
package reservation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/inventory"
	"github.com/kyanz/pos-reservations/internal/metrics"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/kyanz/pos-reservations/internal/receipt"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Coordinator struct {
	Store   orders.Store
	Ledger  inventory.Ledger
	Numbers receipt.Numberer
	Issuer  *receipt.Issuer
	Blobs   *blob.Handle
	Audit   audit.Emitter
	Log     *zap.Logger

	Now   func() time.Time
	Token func() (string, error)
}

type CreateRequest struct {
	Name    string             `json:"customerName"`
	Phone   string             `json:"phone"`
	Email   string             `json:"email"`
	Remarks string             `json:"remarks"`
	Items   []orders.LineInput `json:"items"`
	// Override: Unset dan Cleared sama-sama berarti tanpa override.
	Override orders.Override `json:"overrideTotal"`
}

// EditRequest: nil berarti field tidak dikirim dan nilai lama dipertahankan.
type EditRequest struct {
	Name     *string            `json:"customerName"`
	Phone    *string            `json:"phone"`
	Email    *string            `json:"email"`
	Remarks  *string            `json:"remarks"`
	Items    []orders.LineInput `json:"items"`
	Override orders.Override    `json:"overrideTotal"`
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Coordinator) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Coordinator) emit(ctx context.Context, by auth.Principal, action, orderID string, meta map[string]any) {
	if c.Audit == nil {
		return
	}
	c.Audit.Emit(ctx, audit.Event{
		Actor: by.Actor, Role: string(by.Role), Action: action,
		EntityType: audit.EntityOrder, EntityID: orderID, Meta: meta,
	})
}

// NewShareToken returns 32 hex chars from crypto/rand.
func NewShareToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("share token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

func (c *Coordinator) token() (string, error) {
	if c.Token != nil {
		return c.Token()
	}
	return NewShareToken()
}

// reserveLines drops inputs without a product or with qty <= 0, then debits
// the rest in order. Any failure aborts the surrounding tx.
func (c *Coordinator) reserveLines(ctx context.Context, tx orders.Tx, orderID string, items []orders.LineInput) ([]orders.Line, error) {
	lines := make([]orders.Line, 0, len(items))
	for _, it := range items {
		pid := strings.TrimSpace(it.ProductID)
		if pid == "" || it.Qty <= 0 {
			continue
		}
		p, err := c.Ledger.Reserve(ctx, tx, orderID, len(lines), pid, it.Qty)
		if err != nil {
			return nil, err
		}
		lines = append(lines, orders.Line{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			LineTotal: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))),
		})
	}
	return lines, nil
}

func itemsMeta(lines []orders.Line) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{"name": l.Name, "qty": l.Qty, "unitPrice": l.UnitPrice.String()})
	}
	return out
}

// lockOrder loads the order for update and checks it may move to status to.
func lockOrder(ctx context.Context, tx orders.Tx, id string, to orders.Status, refused func(from orders.Status) error) (orders.Order, error) {
	o, err := tx.OrderForUpdate(ctx, id)
	if errors.Is(err, orders.ErrNoRows) {
		return orders.Order{}, orders.NotFound("Order not found")
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("lock order %s: %w", id, err)
	}
	if !orders.CanTransition(o.Status, to) {
		return orders.Order{}, refused(o.Status)
	}
	return o, nil
}

func (c *Coordinator) Create(ctx context.Context, by auth.Principal, req CreateRequest) (order orders.Order, err error) {
	defer func() { metrics.RecordOrderOperation("create", err) }()

	name := strings.TrimSpace(req.Name)
	phone := orders.NormalizePhone(req.Phone)
	if name == "" || phone == "" {
		return orders.Order{}, orders.Validation(orders.ErrMissingCustomer.Code, "Missing customerName/phone")
	}
	email := orders.NormalizeEmail(req.Email)

	now := c.now()
	o := orders.Order{
		ID:        uuid.NewString(),
		Customer:  orders.Customer{Name: name, Phone: phone, Email: email},
		Remarks:   strings.TrimSpace(req.Remarks),
		CreatedBy: by.Actor,
		Status:    orders.StatusReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := tx.LockCustomer(ctx, phone, email); err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		open, err := tx.FindOpenOrder(ctx, phone, email)
		switch {
		case err == nil:
			return orders.DuplicateOpenOrder(open.ID)
		case !errors.Is(err, orders.ErrNoRows):
			return fmt.Errorf("find open order: %w", err)
		}

		if len(req.Items) == 0 {
			return orders.Validation(orders.ErrEmptyOrder.Code, "No items selected")
		}
		lines, err := c.reserveLines(ctx, tx, o.ID, req.Items)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return orders.Validation(orders.ErrNoValidItems.Code, "No valid items")
		}

		o.Lines = lines
		o.OverrideTotal = req.Override.Resolve(nil)
		o.FinalTotal = orders.FinalTotal(o.Lines, o.OverrideTotal)
		return tx.InsertOrder(ctx, &o)
	})
	if err != nil {
		return orders.Order{}, err
	}

	c.emit(ctx, by, audit.ActionOrderCreateReserve, o.ID, map[string]any{
		"phone": o.Phone,
		"items": itemsMeta(o.Lines),
	})
	return o, nil
}

func (c *Coordinator) Edit(ctx context.Context, by auth.Principal, id string, req EditRequest) (order orders.Order, err error) {
	defer func() { metrics.RecordOrderOperation("edit", err) }()

	var out orders.Order
	err = c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := lockOrder(ctx, tx, id, orders.StatusReserved, func(orders.Status) error {
			return orders.InvalidState(orders.ErrNotEditable.Code, "Only reserved orders can be edited")
		})
		if err != nil {
			return err
		}

		if err := c.Ledger.ReleaseOrder(ctx, tx, o); err != nil {
			return err
		}
		lines, err := c.reserveLines(ctx, tx, o.ID, req.Items)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return orders.Validation(orders.ErrNoValidItems.Code, "No valid items after edit")
		}

		if req.Name != nil {
			if v := strings.TrimSpace(*req.Name); v != "" {
				o.Name = v
			}
		}
		if req.Phone != nil {
			if v := orders.NormalizePhone(*req.Phone); v != "" {
				o.Phone = v
			}
		}
		if req.Email != nil {
			o.Email = orders.NormalizeEmail(*req.Email)
		}
		if req.Remarks != nil {
			o.Remarks = strings.TrimSpace(*req.Remarks)
		}
		o.Lines = lines
		o.OverrideTotal = req.Override.Resolve(o.OverrideTotal)
		o.FinalTotal = orders.FinalTotal(o.Lines, o.OverrideTotal)
		o.UpdatedAt = c.now()
		if err := tx.UpdateOrder(ctx, &o); err != nil {
			return fmt.Errorf("update order %s: %w", o.ID, err)
		}
		out = o
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}

	c.emit(ctx, by, audit.ActionOrderEdit, out.ID, map[string]any{
		"items":      itemsMeta(out.Lines),
		"finalTotal": out.FinalTotal.String(),
	})
	return out, nil
}

// cancelIn releases reserved stock and marks o cancelled inside tx.
func (c *Coordinator) cancelIn(ctx context.Context, tx orders.Tx, by auth.Principal, o *orders.Order, at time.Time) error {
	if err := c.Ledger.ReleaseOrder(ctx, tx, *o); err != nil {
		return err
	}
	o.Status = orders.StatusCancelled
	o.CancelledBy = by.Actor
	o.CancelledAt = &at
	o.UpdatedAt = at
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	return nil
}

func (c *Coordinator) Cancel(ctx context.Context, by auth.Principal, id string) (order orders.Order, err error) {
	defer func() { metrics.RecordOrderOperation("cancel", err) }()

	var out orders.Order
	err = c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := lockOrder(ctx, tx, id, orders.StatusCancelled, func(from orders.Status) error {
			return orders.InvalidState("NOT_CANCELLABLE", fmt.Sprintf("Cannot cancel a %s order", from))
		})
		if err != nil {
			return err
		}
		if err := c.cancelIn(ctx, tx, by, &o, c.now()); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}

	c.emit(ctx, by, audit.ActionOrderCancel, out.ID, map[string]any{"phone": out.Phone})
	return out, nil
}

// EndOfDay cancels every reserved order in one transaction and returns how
// many it cancelled.
func (c *Coordinator) EndOfDay(ctx context.Context, by auth.Principal) (n int, err error) {
	defer func() { metrics.RecordOrderOperation("end_of_day", err) }()

	var swept []orders.Order
	err = c.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		swept = swept[:0]
		open, err := tx.OpenOrdersForUpdate(ctx)
		if err != nil {
			return fmt.Errorf("load open orders: %w", err)
		}
		at := c.now()
		for i := range open {
			if err := c.cancelIn(ctx, tx, by, &open[i], at); err != nil {
				return err
			}
			swept = append(swept, open[i])
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, o := range swept {
		c.emit(ctx, by, audit.ActionEndOfDayCancel, o.ID, nil)
	}
	c.log().Info("end of day sweep", zap.String("actor", by.Actor), zap.Int("cancelled", len(swept)))
	return len(swept), nil
}

func (c *Coordinator) ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, orders.Validation("INVALID_STATUS", "Invalid status filter")
	}
	f.Query = strings.TrimSpace(f.Query)
	f.Limit = orders.PageLimit(f.Limit, orders.ListLimit)
	return c.Store.FindOrders(ctx, f)
}

func (c *Coordinator) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := c.Store.GetOrder(ctx, id)
	if errors.Is(err, orders.ErrNoRows) {
		return orders.Order{}, orders.NotFound("Order not found")
	}
	return o, err
}
