package orders

import (
	"context"
	"errors"
)

// ListLimit caps order listings.
const ListLimit = 200

// ErrNoRows is returned by Tx/Store lookups when the record does not exist.
var ErrNoRows = errors.New("orders: no rows")

// Filter: Status eksak, Query dicocokkan OR ke nama, phone, email, receipt no.
type Filter struct {
	Status Status
	Query  string
	Limit  int
}

// Tx is one atomic unit spanning products, reservations and orders.
// Every read inside a Tx is scoped to it; *ForUpdate reads lock the row
// until commit or rollback.
type Tx interface {
	ProductForUpdate(ctx context.Context, id string) (Product, error)
	SetStock(ctx context.Context, productID string, stock int) error
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error

	AddReservation(ctx context.Context, r Reservation) error
	ActiveReservations(ctx context.Context, orderID string) ([]Reservation, error)
	SettleReservations(ctx context.Context, orderID string, to ReservationStatus) error

	// LockCustomer serializes transactions touching the same phone/email.
	LockCustomer(ctx context.Context, phone, email string) error
	FindOpenOrder(ctx context.Context, phone, email string) (Order, error)
	OrderForUpdate(ctx context.Context, id string) (Order, error)
	OpenOrdersForUpdate(ctx context.Context) ([]Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
}

// Store is the persistence boundary. It holds no business rules.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindOrders(ctx context.Context, f Filter) ([]Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	OrderByShareToken(ctx context.Context, token string) (Order, error)
	ListActiveProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
}

// PageLimit clamps a requested limit to [1, max].
func PageLimit(requested, max int) int {
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}
