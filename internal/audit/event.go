package audit

import (
	"context"
	"errors"
	"time"
)

const (
	ActionOrderCreateReserve = "ORDER_CREATE_RESERVE"
	ActionOrderEdit          = "ORDER_EDIT"
	ActionOrderCancel        = "ORDER_CANCEL"
	ActionOrderPaidReceipt   = "ORDER_PAID_RECEIPT"
	ActionEmailPlaceholder   = "EMAIL_PLACEHOLDER"
	ActionEndOfDayCancel     = "END_OF_DAY_CANCEL"
	ActionProofUpload        = "PROOF_UPLOAD"
	ActionProductCreate      = "PRODUCT_CREATE"
	ActionProductUpdate      = "PRODUCT_UPDATE"

	EntityOrder   = "order"
	EntityProduct = "product"
)

// Event is immutable once appended.
type Event struct {
	ID         string         `json:"id"`
	At         time.Time      `json:"at"`
	Actor      string         `json:"actor"`
	Role       string         `json:"role"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Meta       map[string]any `json:"meta"`
}

// Emitter records events without ever failing the caller.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Sink is the append-only store behind an Emitter.
type Sink interface {
	Append(ctx context.Context, e Event) error
}

type Searcher interface {
	Search(ctx context.Context, q string, limit int) ([]Event, error)
}

// SearchLimit caps audit search results.
const SearchLimit = 300

func clampLimit(n int) int {
	if n <= 0 || n > SearchLimit {
		return SearchLimit
	}
	return n
}

// Nop drops everything.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Tee appends to every sink and joins their errors.
type Tee []Sink

func (t Tee) Append(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
