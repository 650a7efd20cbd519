package receipt

import (
	"time"

	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/shopspring/decimal"
)

// Document is everything printed on a receipt.
type Document struct {
	ReceiptNo  string
	IssuedAt   time.Time
	OrderID    string
	Customer   orders.Customer
	Promoter   string
	Cashier    string
	Method     string
	Remarks    string
	Lines      []orders.Line
	Override   *decimal.Decimal
	GrandTotal decimal.Decimal
}

// FromOrder builds the document from an order snapshot without touching it.
func FromOrder(o orders.Order, cashier, method, receiptNo string, at time.Time) Document {
	d := Document{
		ReceiptNo:  receiptNo,
		IssuedAt:   at,
		OrderID:    o.ID,
		Customer:   o.Customer,
		Promoter:   o.CreatedBy,
		Cashier:    cashier,
		Method:     method,
		Remarks:    o.Remarks,
		Lines:      append([]orders.Line(nil), o.Lines...),
		GrandTotal: o.FinalTotal,
	}
	if o.OverrideTotal != nil {
		v := *o.OverrideTotal
		d.Override = &v
	}
	return d
}

// Renderer turns a Document into artifact bytes. Implementations must be
// pure: same Document, same bytes.
type Renderer interface {
	Render(d Document) ([]byte, error)
	ContentType() string
	Extension() string
}
