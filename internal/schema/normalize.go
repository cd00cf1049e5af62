package schema

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Status is the outcome of normalizing one raw value.
type Status int

const (
	// StatusOK means the value parsed cleanly (or was a recognized null).
	StatusOK Status = iota
	// StatusWarn means the value was kept but looks off, e.g. a phone
	// number with an unexpected digit count.
	StatusWarn
	// StatusFail means the value could not be parsed for its kind; the
	// returned value is null.
	StatusFail
)

// nullTokens are raw strings that mean "no value", compared case-insensitively
// after trimming.
var nullTokens = map[string]struct{}{
	"":     {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"null": {},
}

// Normalize converts raw recognized text into a typed value for a kind.
// It is idempotent: normalizing a value's String() form returns an equal
// value with the same status.
func Normalize(kind ValueKind, raw string) (Value, Status) {
	s := strings.TrimSpace(norm.NFC.String(raw))
	if _, ok := nullTokens[strings.ToLower(s)]; ok {
		return NullValue(kind), StatusOK
	}

	switch kind {
	case KindCurrency:
		return normalizeDecimal(kind, strings.TrimPrefix(s, "$"))
	case KindPercent:
		return normalizeDecimal(kind, strings.TrimSuffix(s, "%"))
	case KindInteger:
		n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
		if err != nil {
			return NullValue(kind), StatusFail
		}
		return IntValue(n), StatusOK
	case KindPhone:
		return normalizePhone(s)
	default:
		return TextValue(kind, collapseSpaces(s)), StatusOK
	}
}

func normalizeDecimal(kind ValueKind, s string) (Value, Status) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return NullValue(kind), StatusFail
	}
	return DecimalValue(kind, d), StatusOK
}

// normalizePhone formats 10-digit numbers as XXX-XXX-XXXX. An 11-digit
// number with a leading 1 drops the country code first. Anything else is
// kept verbatim with a warning so a later stage can take a second look.
func normalizePhone(s string) (Value, Status) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		return TextValue(KindPhone, digits[0:3]+"-"+digits[3:6]+"-"+digits[6:10]), StatusOK
	}
	return TextValue(KindPhone, collapseSpaces(s)), StatusWarn
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
