// Package memstore is an in-memory orders.Store. Transactions run one at a
// time against a private copy of the state which replaces the live state
// only when the callback returns nil.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kyanz/pos-reservations/internal/orders"
)

type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	products     map[string]orders.Product
	orders       map[string]orders.Order
	seq          map[string]int
	next         int
	reservations []orders.Reservation
}

func New() *Store {
	return &Store{st: &state{
		products: map[string]orders.Product{},
		orders:   map[string]orders.Order{},
		seq:      map[string]int{},
	}}
}

func (s *state) clone() *state {
	c := &state{
		products:     make(map[string]orders.Product, len(s.products)),
		orders:       make(map[string]orders.Order, len(s.orders)),
		seq:          make(map[string]int, len(s.seq)),
		next:         s.next,
		reservations: append([]orders.Reservation(nil), s.reservations...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Reservations returns a copy of every reservation row, for assertions.
func (s *Store) Reservations() []orders.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orders.Reservation(nil), s.st.reservations...)
}

func (s *Store) FindOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.TrimSpace(f.Query)
	lq := strings.ToLower(q)
	out := []orders.Order{}
	for _, o := range s.st.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if q != "" && !(o.Phone == q ||
			o.Email == lq ||
			strings.Contains(strings.ToLower(o.Name), lq) ||
			strings.Contains(strings.ToLower(o.Receipt.ReceiptNo), lq)) {
			continue
		}
		out = append(out, o.Clone())
	}
	s.st.newestFirst(out)
	if n := orders.PageLimit(f.Limit, orders.ListLimit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *state) newestFirst(list []orders.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return s.seq[list[i].ID] > s.seq[list[j].ID]
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNoRows
	}
	return o.Clone(), nil
}

func (s *Store) OrderByShareToken(ctx context.Context, token string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return orders.Order{}, orders.ErrNoRows
	}
	for _, o := range s.st.orders {
		if o.ShareToken == token {
			return o.Clone(), nil
		}
	}
	return orders.Order{}, orders.ErrNoRows
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.Product{}
	for _, p := range s.st.products {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNoRows
	}
	return p, nil
}

type tx struct{ st *state }

func (t *tx) ProductForUpdate(ctx context.Context, id string) (orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNoRows
	}
	return p, nil
}

func (t *tx) SetStock(ctx context.Context, productID string, stock int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.ErrNoRows
	}
	if stock < 0 {
		return fmt.Errorf("memstore: stock check violated for %s: %d", productID, stock)
	}
	p.Stock = stock
	t.st.products[productID] = p
	return nil
}

func (t *tx) InsertProduct(ctx context.Context, p *orders.Product) error {
	for _, x := range t.st.products {
		if x.Name == p.Name {
			return orders.Validation("DUPLICATE_PRODUCT", "Product name already exists: "+p.Name)
		}
	}
	if _, ok := t.st.products[p.ID]; ok {
		return fmt.Errorf("memstore: product %s exists", p.ID)
	}
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) UpdateProduct(ctx context.Context, p *orders.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return orders.ErrNoRows
	}
	for id, x := range t.st.products {
		if id != p.ID && x.Name == p.Name {
			return orders.Validation("DUPLICATE_PRODUCT", "Product name already exists: "+p.Name)
		}
	}
	if p.Stock < 0 {
		return fmt.Errorf("memstore: stock check violated for %s: %d", p.ID, p.Stock)
	}
	t.st.products[p.ID] = *p
	return nil
}

func (t *tx) AddReservation(ctx context.Context, r orders.Reservation) error {
	for _, x := range t.st.reservations {
		if x.OrderID == r.OrderID && x.LineNo == r.LineNo && x.Status == orders.ReservationReserved {
			return fmt.Errorf("memstore: active reservation exists for %s/%d", r.OrderID, r.LineNo)
		}
	}
	r.Status = orders.ReservationReserved
	t.st.reservations = append(t.st.reservations, r)
	return nil
}

func (t *tx) ActiveReservations(ctx context.Context, orderID string) ([]orders.Reservation, error) {
	var out []orders.Reservation
	for _, r := range t.st.reservations {
		if r.OrderID == orderID && r.Status == orders.ReservationReserved {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNo < out[j].LineNo })
	return out, nil
}

func (t *tx) SettleReservations(ctx context.Context, orderID string, to orders.ReservationStatus) error {
	for i, r := range t.st.reservations {
		if r.OrderID == orderID && r.Status == orders.ReservationReserved {
			t.st.reservations[i].Status = to
		}
	}
	return nil
}

// Satu tx jalan pada satu waktu, jadi kunci per customer tidak perlu.
func (t *tx) LockCustomer(ctx context.Context, phone, email string) error { return nil }

func (t *tx) FindOpenOrder(ctx context.Context, phone, email string) (orders.Order, error) {
	var hits []orders.Order
	for _, o := range t.st.orders {
		if o.Status != orders.StatusReserved {
			continue
		}
		if o.Phone == phone || (email != "" && o.Email == email) {
			hits = append(hits, o)
		}
	}
	if len(hits) == 0 {
		return orders.Order{}, orders.ErrNoRows
	}
	t.st.newestFirst(hits)
	return hits[len(hits)-1].Clone(), nil
}

func (t *tx) OrderForUpdate(ctx context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNoRows
	}
	return o.Clone(), nil
}

func (t *tx) OpenOrdersForUpdate(ctx context.Context) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range t.st.orders {
		if o.Status == orders.StatusReserved {
			out = append(out, o.Clone())
		}
	}
	t.st.newestFirst(out)
	// oldest first, sama seperti repo Postgres
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("memstore: order %s exists", o.ID)
	}
	t.st.next++
	t.st.seq[o.ID] = t.st.next
	t.st.orders[o.ID] = o.Clone()
	return nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return orders.ErrNoRows
	}
	if o.ShareToken != "" {
		for id, x := range t.st.orders {
			if id != o.ID && x.ShareToken == o.ShareToken {
				return fmt.Errorf("memstore: share token collision on %s", o.ID)
			}
		}
	}
	t.st.orders[o.ID] = o.Clone()
	return nil
}
