package orders

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type OverrideKind int

const (
	OverrideUnset   OverrideKind = iota // field absent or null
	OverrideCleared                     // empty string
	OverrideValue
)

// Override is the request-side form of the whole-order override total.
// It is decoded once and resolved against the order's stored value.
type Override struct {
	Kind   OverrideKind
	Amount decimal.Decimal
}

func OverrideOf(amount decimal.Decimal) Override {
	return Override{Kind: OverrideValue, Amount: amount}
}

func (o *Override) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*o = Override{}
	case bytes.Equal(b, []byte(`""`)):
		*o = Override{Kind: OverrideCleared}
	default:
		// true/false/object/teks: bukan angka, dianggap 0
		*o = OverrideOf(coerceDecimal(b))
	}
	return nil
}

// coerceDecimal reads a JSON number or numeric string. Anything else,
// including null and "", is zero.
func coerceDecimal(b []byte) decimal.Decimal {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero
		}
		b = []byte(strings.TrimSpace(s))
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (o Override) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OverrideCleared:
		return []byte(`""`), nil
	case OverrideValue:
		return json.Marshal(o.Amount)
	default:
		return []byte("null"), nil
	}
}

// Resolve returns the override to store given the current one.
func (o Override) Resolve(current *decimal.Decimal) *decimal.Decimal {
	switch o.Kind {
	case OverrideCleared:
		return nil
	case OverrideValue:
		v := o.Amount
		return &v
	default:
		return current
	}
}
