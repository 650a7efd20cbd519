package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Stock     int             `json:"stock"`
	BasePrice decimal.Decimal `json:"basePrice"` // referensi saja, harga order dari line
	Active    bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Customer struct {
	Name  string `json:"customerName"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Line menyimpan snapshot nama & harga; tidak ikut berubah kalau katalog diedit.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Payment struct {
	Method string     `json:"method"`
	PaidAt *time.Time `json:"paidAt"`
	PaidBy string     `json:"paidBy"`
}

type Receipt struct {
	ReceiptNo   string `json:"receiptNo"`
	ArtifactRef string `json:"artifactRef"`
}

type Proof struct {
	Ref         string    `json:"fileId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"mimetype"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	UploadedBy  string    `json:"uploadedBy"`
}

type Order struct {
	ID string `json:"id"`
	Customer
	Remarks       string           `json:"remarks"`
	CreatedBy     string           `json:"createdBy"`
	Status        Status           `json:"status"`
	Lines         []Line           `json:"items"`
	OverrideTotal *decimal.Decimal `json:"overrideTotal"`
	FinalTotal    decimal.Decimal  `json:"finalTotal"`
	Payment       Payment          `json:"payment"`
	Receipt       Receipt          `json:"receipt"`
	Proofs        []Proof          `json:"proofs"`
	CancelledBy   string           `json:"cancelledBy"`
	CancelledAt   *time.Time       `json:"cancelledAt"`
	ShareToken    string           `json:"shareToken,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy; slices and pointers are not shared.
func (o Order) Clone() Order {
	c := o
	c.Lines = append([]Line(nil), o.Lines...)
	c.Proofs = append([]Proof(nil), o.Proofs...)
	if o.OverrideTotal != nil {
		v := *o.OverrideTotal
		c.OverrideTotal = &v
	}
	if o.Payment.PaidAt != nil {
		v := *o.Payment.PaidAt
		c.Payment.PaidAt = &v
	}
	if o.CancelledAt != nil {
		v := *o.CancelledAt
		c.CancelledAt = &v
	}
	return c
}

type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationReleased ReservationStatus = "RELEASED"
	ReservationConsumed ReservationStatus = "CONSUMED"
)

// Reservation: satu baris per (order, line). Release hanya boleh mengembalikan
// qty yang tercatat di sini.
type Reservation struct {
	OrderID   string
	LineNo    int
	ProductID string
	Qty       int
	Status    ReservationStatus
	CreatedAt time.Time
}

// LineInput adalah item mentah dari request sebelum divalidasi.
type LineInput struct {
	ProductID string          `json:"productId"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// UnmarshalJSON never rejects a line: a non-numeric qty or unitPrice reads
// as 0 and a fractional qty is truncated, so the line is dropped or priced
// at 0 instead of failing the request.
func (l *LineInput) UnmarshalJSON(b []byte) error {
	var raw struct {
		ProductID json.RawMessage `json:"productId"`
		Qty       json.RawMessage `json:"qty"`
		UnitPrice json.RawMessage `json:"unitPrice"`
	}
	*l = LineInput{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil // bukan object, baris diabaikan
	}
	if len(raw.ProductID) > 0 {
		_ = json.Unmarshal(raw.ProductID, &l.ProductID)
	}
	l.Qty = int(coerceDecimal(raw.Qty).IntPart())
	l.UnitPrice = coerceDecimal(raw.UnitPrice)
	return nil
}
