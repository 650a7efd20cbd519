package orders

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindDuplicateOpenOrder Kind = "duplicate_open_order"
	KindNotFound           Kind = "not_found"
	KindInvalidState       Kind = "invalid_state"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindInternal           Kind = "internal"
)

// Error is the business error returned by the ledger and the coordinator.
// errors.Is matches on Kind, and on Code when the target sets one.
type Error struct {
	Kind Kind
	Code string
	Msg  string

	OpenOrderID string
	ProductName string
	Remaining   int
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Code != "" {
		return string(e.Kind) + ": " + e.Code
	}
	return string(e.Kind)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock}
	ErrDuplicateOpenOrder = &Error{Kind: KindDuplicateOpenOrder}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrInternal           = &Error{Kind: KindInternal}

	ErrMissingCustomer      = &Error{Kind: KindValidation, Code: "MISSING_CUSTOMER"}
	ErrEmptyOrder           = &Error{Kind: KindValidation, Code: "EMPTY_ORDER"}
	ErrNoValidItems         = &Error{Kind: KindValidation, Code: "NO_VALID_ITEMS"}
	ErrInvalidProduct       = &Error{Kind: KindValidation, Code: "INVALID_PRODUCT"}
	ErrInvalidPaymentMethod = &Error{Kind: KindValidation, Code: "INVALID_PAYMENT_METHOD"}
	ErrNotEditable          = &Error{Kind: KindInvalidState, Code: "NOT_EDITABLE"}
	ErrReservationMismatch  = &Error{Kind: KindInternal, Code: "RESERVATION_MISMATCH"}
)

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func InvalidState(code, msg string) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Msg: msg}
}

func InsufficientStock(productName string, remaining int) *Error {
	return &Error{
		Kind:        KindInsufficientStock,
		Msg:         fmt.Sprintf("Not enough stock for %s. Remaining: %d", productName, remaining),
		ProductName: productName,
		Remaining:   remaining,
	}
}

func DuplicateOpenOrder(openOrderID string) *Error {
	return &Error{
		Kind:        KindDuplicateOpenOrder,
		Msg:         "Customer has an open order. Please proceed to cashier or cancel the open order.",
		OpenOrderID: openOrderID,
	}
}

func StorageUnavailable(msg string) *Error {
	return &Error{Kind: KindStorageUnavailable, Msg: msg}
}

// KindOf classifies any error; non-business errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
