package schema

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Value is a typed, possibly-null field value. The zero Value is a null
// text value.
type Value struct {
	kind ValueKind
	null bool
	text string
	dec  decimal.Decimal
	num  int64
}

// NullValue returns the null value for a kind.
func NullValue(kind ValueKind) Value {
	return Value{kind: kind, null: true}
}

// TextValue returns a non-null text-backed value (text and phone kinds).
func TextValue(kind ValueKind, s string) Value {
	return Value{kind: kind, text: s}
}

// DecimalValue returns a non-null decimal-backed value (currency and percent).
func DecimalValue(kind ValueKind, d decimal.Decimal) Value {
	return Value{kind: kind, dec: d}
}

// IntValue returns a non-null integer value.
func IntValue(n int64) Value {
	return Value{kind: KindInteger, num: n}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.null }

// Text returns the string form for text-backed values. Empty for null or
// numeric values.
func (v Value) Text() string {
	if v.null {
		return ""
	}
	return v.text
}

// Decimal returns the decimal for currency and percent values.
func (v Value) Decimal() decimal.Decimal { return v.dec }

// Int returns the integer for integer values.
func (v Value) Int() int64 { return v.num }

// String renders the canonical string form: the form that, normalized
// again, yields an equal Value. Null renders as the empty string.
func (v Value) String() string {
	if v.null {
		return ""
	}
	switch v.kind {
	case KindCurrency, KindPercent:
		return v.decimalText()
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	default:
		return v.text
	}
}

// decimalText renders the decimal at its parsed scale, so "21.90" stays
// "21.90" rather than collapsing to "21.9".
func (v Value) decimalText() string {
	if exp := v.dec.Exponent(); exp < 0 {
		return v.dec.StringFixed(-exp)
	}
	return v.dec.String()
}

// Raw returns the JSON-facing representation: nil, a string, or a
// json.Number carrying the exact decimal text.
func (v Value) Raw() any {
	if v.null {
		return nil
	}
	switch v.kind {
	case KindCurrency, KindPercent:
		return json.Number(v.decimalText())
	case KindInteger:
		return json.Number(strconv.FormatInt(v.num, 10))
	default:
		return v.text
	}
}

// Equal reports whether two values have the same kind and content.
// Decimals compare by numeric value, so 21 and 21.0 are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.null != o.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.kind {
	case KindCurrency, KindPercent:
		return v.dec.Equal(o.dec)
	case KindInteger:
		return v.num == o.num
	default:
		return v.text == o.text
	}
}

// MarshalJSON renders the value as its raw JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}
