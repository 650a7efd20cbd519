package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/shopspring/decimal"
)

// Service handles catalog maintenance by inventory staff.
type Service struct {
	Store  orders.Store
	Ledger Ledger
	Audit  audit.Emitter
	Now    func() time.Time
}

type NewProduct struct {
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Stock     int             `json:"stock"`
	BasePrice decimal.Decimal `json:"basePrice"`
}

// ProductPatch: hanya field yang dikirim (non-nil) yang ditimpa.
type ProductPatch struct {
	Name      *string          `json:"name"`
	SKU       *string          `json:"sku"`
	Stock     *int             `json:"stock"`
	BasePrice *decimal.Decimal `json:"basePrice"`
	Active    *bool            `json:"isActive"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) List(ctx context.Context) ([]orders.Product, error) {
	return s.Store.ListActiveProducts(ctx)
}

func (s *Service) Create(ctx context.Context, by auth.Principal, in NewProduct) (orders.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return orders.Product{}, orders.Validation("MISSING_NAME", "Missing product name")
	}
	if in.Stock < 0 {
		return orders.Product{}, orders.Validation("INVALID_STOCK", "Stock cannot be negative")
	}
	if in.BasePrice.IsNegative() {
		return orders.Product{}, orders.Validation("INVALID_PRICE", "Base price cannot be negative")
	}
	now := s.now()
	p := orders.Product{
		ID:        uuid.NewString(),
		Name:      name,
		SKU:       strings.TrimSpace(in.SKU),
		Stock:     in.Stock,
		BasePrice: in.BasePrice,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertProduct(ctx, &p)
	}); err != nil {
		return orders.Product{}, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Actor: by.Actor, Role: string(by.Role), Action: audit.ActionProductCreate,
		EntityType: audit.EntityProduct, EntityID: p.ID,
		Meta: map[string]any{"name": p.Name, "stock": p.Stock},
	})
	return p, nil
}

func (s *Service) Update(ctx context.Context, by auth.Principal, id string, patch ProductPatch) (orders.Product, error) {
	meta := map[string]any{}
	var out orders.Product
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		p, err := tx.ProductForUpdate(ctx, id)
		if errors.Is(err, orders.ErrNoRows) {
			return orders.NotFound("Product not found")
		}
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return orders.Validation("MISSING_NAME", "Missing product name")
			}
			p.Name = name
			meta["name"] = name
		}
		if patch.SKU != nil {
			p.SKU = strings.TrimSpace(*patch.SKU)
			meta["sku"] = p.SKU
		}
		if patch.Active != nil {
			p.Active = *patch.Active
			meta["isActive"] = p.Active
		}
		p.UpdatedAt = s.now()
		if err := tx.UpdateProduct(ctx, &p); err != nil {
			return err
		}

		if patch.Stock != nil || patch.BasePrice != nil {
			stock, price := p.Stock, p.BasePrice
			if patch.Stock != nil {
				stock = *patch.Stock
				meta["stock"] = stock
			}
			if patch.BasePrice != nil {
				if patch.BasePrice.IsNegative() {
					return orders.Validation("INVALID_PRICE", "Base price cannot be negative")
				}
				price = *patch.BasePrice
				meta["basePrice"] = price.String()
			}
			if p, err = s.Ledger.SetLevel(ctx, tx, id, stock, price); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return orders.Product{}, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Actor: by.Actor, Role: string(by.Role), Action: audit.ActionProductUpdate,
		EntityType: audit.EntityProduct, EntityID: out.ID, Meta: meta,
	})
	return out, nil
}
