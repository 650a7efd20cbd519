package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/kyanz/pos-reservations/internal/orders/memstore"
	"github.com/shopspring/decimal"
)

func seed(t *testing.T, s *memstore.Store, ps ...orders.Product) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		for i := range ps {
			if err := tx.InsertProduct(ctx, &ps[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReserve(t *testing.T) {
	s := memstore.New()
	seed(t, s,
		orders.Product{ID: "p1", Name: "Widget", Stock: 5, Active: true},
		orders.Product{ID: "off", Name: "Retired", Stock: 5},
	)
	var l Ledger

	tests := []struct {
		name    string
		product string
		qty     int
		want    error
	}{
		{"ok", "p1", 5, nil},
		{"too many", "p1", 6, orders.ErrInsufficientStock},
		{"zero qty", "p1", 0, orders.ErrValidation},
		{"missing", "nope", 1, orders.ErrInvalidProduct},
		{"inactive", "off", 1, orders.ErrInvalidProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got orders.Product
			err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
				p, err := l.Reserve(ctx, tx, "o1", 0, tt.product, tt.qty)
				got = p
				if err != nil {
					return err
				}
				return errors.New("rollback")
			})
			if tt.want == nil {
				if err == nil || err.Error() != "rollback" {
					t.Fatalf("err = %v", err)
				}
				if got.Stock != 0 || got.Name != "Widget" {
					t.Errorf("product after reserve = %+v", got)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReleaseRequiresPairing(t *testing.T) {
	s := memstore.New()
	seed(t, s, orders.Product{ID: "p1", Name: "Widget", Stock: 10, Active: true})
	var l Ledger
	ctx := context.Background()

	o := orders.Order{ID: "o1", Lines: []orders.Line{{ProductID: "p1", Qty: 3}}}
	if err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		_, err := l.Reserve(ctx, tx, o.ID, 0, "p1", 3)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	// a line claiming more than was reserved must not inflate stock
	inflated := o.Clone()
	inflated.Lines[0].Qty = 5
	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return l.ReleaseOrder(ctx, tx, inflated)
	})
	if !errors.Is(err, orders.ErrReservationMismatch) {
		t.Fatalf("err = %v, want reservation mismatch", err)
	}

	if err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return l.ReleaseOrder(ctx, tx, o)
	}); err != nil {
		t.Fatalf("release: %v", err)
	}
	p, _ := s.GetProduct(ctx, "p1")
	if p.Stock != 10 {
		t.Errorf("stock = %d, want 10", p.Stock)
	}

	// second release has nothing active left
	err = s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return l.ReleaseOrder(ctx, tx, o)
	})
	if !errors.Is(err, orders.ErrReservationMismatch) {
		t.Errorf("double release err = %v", err)
	}
	p, _ = s.GetProduct(ctx, "p1")
	if p.Stock != 10 {
		t.Errorf("stock after double release = %d, want 10", p.Stock)
	}
}

func TestConsumeKeepsStock(t *testing.T) {
	s := memstore.New()
	seed(t, s, orders.Product{ID: "p1", Name: "Widget", Stock: 10, Active: true})
	var l Ledger
	ctx := context.Background()
	o := orders.Order{ID: "o1", Lines: []orders.Line{{ProductID: "p1", Qty: 2}}}

	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := l.Reserve(ctx, tx, o.ID, 0, "p1", 2); err != nil {
			return err
		}
		return l.ConsumeOrder(ctx, tx, o)
	})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetProduct(ctx, "p1")
	if p.Stock != 8 {
		t.Errorf("stock = %d, want 8", p.Stock)
	}
	if r := s.Reservations(); len(r) != 1 || r[0].Status != orders.ReservationConsumed {
		t.Errorf("reservations = %+v", r)
	}
}

func TestSetLevel(t *testing.T) {
	s := memstore.New()
	seed(t, s, orders.Product{ID: "p1", Name: "Widget", Stock: 10, Active: true})
	var l Ledger
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		_, err := l.SetLevel(ctx, tx, "p1", -1, decimal.Zero)
		return err
	})
	if !errors.Is(err, orders.ErrValidation) {
		t.Errorf("negative level err = %v", err)
	}
	err = s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		_, err := l.SetLevel(ctx, tx, "nope", 1, decimal.Zero)
		return err
	})
	if !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("missing product err = %v", err)
	}
	err = s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		_, err := l.SetLevel(ctx, tx, "p1", 3, decimal.RequireFromString("12.90"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetProduct(ctx, "p1")
	if p.Stock != 3 || !p.BasePrice.Equal(decimal.RequireFromString("12.90")) {
		t.Errorf("product = %+v", p)
	}
}
