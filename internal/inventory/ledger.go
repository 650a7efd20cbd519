package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/kyanz/pos-reservations/internal/metrics"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/shopspring/decimal"
)

// Ledger owns stock counts. Every call runs inside the caller's tx, so a
// debit or credit lands together with the order write it belongs to.
type Ledger struct{}

// Reserve locks the product row, checks stock and debits qty for one order
// line. The returned product carries the pre-debit name for snapshots.
func (Ledger) Reserve(ctx context.Context, tx orders.Tx, orderID string, lineNo int, productID string, qty int) (orders.Product, error) {
	if qty <= 0 {
		return orders.Product{}, orders.Validation("INVALID_QTY", fmt.Sprintf("Invalid qty for product %s", productID))
	}
	p, err := tx.ProductForUpdate(ctx, productID)
	if errors.Is(err, orders.ErrNoRows) {
		return orders.Product{}, orders.Validation(orders.ErrInvalidProduct.Code, "Invalid product in items")
	}
	if err != nil {
		return orders.Product{}, fmt.Errorf("lock product %s: %w", productID, err)
	}
	if !p.Active {
		return orders.Product{}, orders.Validation(orders.ErrInvalidProduct.Code, "Invalid product in items")
	}
	if p.Stock < qty {
		return orders.Product{}, orders.InsufficientStock(p.Name, p.Stock)
	}

	if err := tx.SetStock(ctx, p.ID, p.Stock-qty); err != nil {
		return orders.Product{}, fmt.Errorf("debit %s: %w", p.ID, err)
	}
	if err := tx.AddReservation(ctx, orders.Reservation{
		OrderID: orderID, LineNo: lineNo, ProductID: p.ID, Qty: qty,
	}); err != nil {
		return orders.Product{}, fmt.Errorf("record reservation %s/%d: %w", orderID, lineNo, err)
	}
	metrics.StockUnits.WithLabelValues("debit").Add(float64(qty))
	p.Stock -= qty
	return p, nil
}

// paired loads the active reservations of o and checks they match its lines
// one to one. A mismatch means a debit was never recorded or was already
// settled, and crediting blindly would inflate stock.
func paired(ctx context.Context, tx orders.Tx, o orders.Order) ([]orders.Reservation, error) {
	res, err := tx.ActiveReservations(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load reservations %s: %w", o.ID, err)
	}
	mismatch := func(why string) error {
		return &orders.Error{
			Kind: orders.KindInternal,
			Code: orders.ErrReservationMismatch.Code,
			Msg:  fmt.Sprintf("reservation mismatch on order %s: %s", o.ID, why),
		}
	}
	if len(res) != len(o.Lines) {
		return nil, mismatch(fmt.Sprintf("%d reservations for %d lines", len(res), len(o.Lines)))
	}
	for i, r := range res {
		l := o.Lines[i]
		if r.LineNo != i || r.ProductID != l.ProductID || r.Qty != l.Qty {
			return nil, mismatch(fmt.Sprintf("line %d", i))
		}
	}
	return res, nil
}

// ReleaseOrder credits back every active reservation of the order and marks
// them released. No ceiling check: returned stock is not compared against
// any catalog total.
func (Ledger) ReleaseOrder(ctx context.Context, tx orders.Tx, o orders.Order) error {
	res, err := paired(ctx, tx, o)
	if err != nil {
		return err
	}
	for _, r := range res {
		p, err := tx.ProductForUpdate(ctx, r.ProductID)
		if err != nil {
			return fmt.Errorf("lock product %s: %w", r.ProductID, err)
		}
		if err := tx.SetStock(ctx, p.ID, p.Stock+r.Qty); err != nil {
			return fmt.Errorf("credit %s: %w", p.ID, err)
		}
		metrics.StockUnits.WithLabelValues("credit").Add(float64(r.Qty))
	}
	return tx.SettleReservations(ctx, o.ID, orders.ReservationReleased)
}

// ConsumeOrder marks the order's reservations as permanently out of stock.
func (Ledger) ConsumeOrder(ctx context.Context, tx orders.Tx, o orders.Order) error {
	if _, err := paired(ctx, tx, o); err != nil {
		return err
	}
	return tx.SettleReservations(ctx, o.ID, orders.ReservationConsumed)
}

// SetLevel overwrites stock and base price directly; it is not a reservation.
func (Ledger) SetLevel(ctx context.Context, tx orders.Tx, productID string, stock int, basePrice decimal.Decimal) (orders.Product, error) {
	if stock < 0 {
		return orders.Product{}, orders.Validation("INVALID_STOCK", "Stock cannot be negative")
	}
	p, err := tx.ProductForUpdate(ctx, productID)
	if errors.Is(err, orders.ErrNoRows) {
		return orders.Product{}, orders.NotFound("Product not found")
	}
	if err != nil {
		return orders.Product{}, err
	}
	p.Stock = stock
	p.BasePrice = basePrice
	if err := tx.UpdateProduct(ctx, &p); err != nil {
		return orders.Product{}, err
	}
	return p, nil
}
