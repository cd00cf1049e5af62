// Package schema defines the contract field schema: the canonical field set,
// typed values, and the normalization rules that turn raw recognized text
// into clean typed values.
package schema

import "regexp"

// ValueKind is the semantic type of a field's value.
type ValueKind string

const (
	KindText     ValueKind = "text"
	KindCurrency ValueKind = "currency"
	KindPercent  ValueKind = "percent"
	KindInteger  ValueKind = "integer"
	KindPhone    ValueKind = "phone"
)

// FieldSpec describes one schema field: its kind, the label phrases that
// anchor it on the page, and the shape a candidate value must have.
type FieldSpec struct {
	Name     string
	Kind     ValueKind
	Keywords []string
	Pattern  *regexp.Regexp
	MaxSpan  int
}

var (
	currencyPat = regexp.MustCompile(`^\$?\s?\d[\d,]*(?:\.\d{1,4})?$`)
	percentPat  = regexp.MustCompile(`^\d{1,2}(?:\.\d{1,4})?\s?%?$`)
	integerPat  = regexp.MustCompile(`^\d{1,6}$`)
	phonePat    = regexp.MustCompile(`^[()\d][()\d\s.\-]{6,18}$`)
	textPat     = regexp.MustCompile(`[A-Za-z0-9]`)
	statePat    = regexp.MustCompile(`^[A-Za-z]{2}$`)
	zipPat      = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
)

// fields is the canonical schema in output order. Keyword phrases are
// lowercase; matching against the page is case-insensitive.
var fields = []FieldSpec{
	{Name: "seller_name", Kind: KindText, MaxSpan: 6, Pattern: textPat,
		Keywords: []string{"seller's name", "seller name", "creditor-seller", "dealer name", "seller"}},
	{Name: "seller_address", Kind: KindText, MaxSpan: 8, Pattern: textPat,
		Keywords: []string{"seller's address", "seller address", "dealer address"}},
	{Name: "seller_city", Kind: KindText, MaxSpan: 3, Pattern: textPat,
		Keywords: []string{"city"}},
	{Name: "seller_state", Kind: KindText, MaxSpan: 1, Pattern: statePat,
		Keywords: []string{"state"}},
	{Name: "seller_zip", Kind: KindText, MaxSpan: 1, Pattern: zipPat,
		Keywords: []string{"zip code", "zip"}},
	{Name: "seller_phone", Kind: KindPhone, MaxSpan: 3, Pattern: phonePat,
		Keywords: []string{"seller's phone", "seller phone", "dealer phone", "telephone", "phone"}},
	{Name: "buyer_name", Kind: KindText, MaxSpan: 6, Pattern: textPat,
		Keywords: []string{"buyer's name", "buyer name", "purchaser", "buyer"}},
	{Name: "buyer_address", Kind: KindText, MaxSpan: 8, Pattern: textPat,
		Keywords: []string{"buyer's address", "buyer address", "address"}},
	{Name: "buyer_phone", Kind: KindPhone, MaxSpan: 3, Pattern: phonePat,
		Keywords: []string{"buyer's phone", "buyer phone"}},
	{Name: "co_buyer_name", Kind: KindText, MaxSpan: 6, Pattern: textPat,
		Keywords: []string{"co-buyer's name", "co-buyer name", "cobuyer name", "co-buyer"}},
	{Name: "co_buyer_address", Kind: KindText, MaxSpan: 8, Pattern: textPat,
		Keywords: []string{"co-buyer's address", "co-buyer address", "cobuyer address"}},
	{Name: "co_buyer_phone", Kind: KindPhone, MaxSpan: 3, Pattern: phonePat,
		Keywords: []string{"co-buyer's phone", "co-buyer phone", "cobuyer phone"}},
	{Name: "quantity", Kind: KindInteger, MaxSpan: 1, Pattern: integerPat,
		Keywords: []string{"quantity", "qty"}},
	{Name: "items_purchased", Kind: KindText, MaxSpan: 8, Pattern: textPat,
		Keywords: []string{"items purchased", "item purchased", "description of goods", "description"}},
	{Name: "make_or_model", Kind: KindText, MaxSpan: 6, Pattern: textPat,
		Keywords: []string{"make or model", "make/model", "make and model", "model"}},
	{Name: "amount_financed", Kind: KindCurrency, MaxSpan: 2, Pattern: currencyPat,
		Keywords: []string{"amount financed"}},
	{Name: "finance_charge", Kind: KindCurrency, MaxSpan: 2, Pattern: currencyPat,
		Keywords: []string{"finance charge"}},
	{Name: "apr", Kind: KindPercent, MaxSpan: 2, Pattern: percentPat,
		Keywords: []string{"annual percentage rate", "apr"}},
	{Name: "total_of_payments", Kind: KindCurrency, MaxSpan: 2, Pattern: currencyPat,
		Keywords: []string{"total of payments"}},
	{Name: "number_of_payments", Kind: KindInteger, MaxSpan: 1, Pattern: integerPat,
		Keywords: []string{"number of payments"}},
	{Name: "amount_of_payments", Kind: KindCurrency, MaxSpan: 2, Pattern: currencyPat,
		Keywords: []string{"amount of payments", "amount of each payment", "payment amount"}},
}

var byName = func() map[string]*FieldSpec {
	m := make(map[string]*FieldSpec, len(fields))
	for i := range fields {
		m[fields[i].Name] = &fields[i]
	}
	return m
}()

// Fields returns the canonical field specs in output order. The returned
// slice is a copy; callers may reorder or extend keywords freely.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fields))
	copy(out, fields)
	for i := range out {
		kw := make([]string, len(out[i].Keywords))
		copy(kw, out[i].Keywords)
		out[i].Keywords = kw
	}
	return out
}

// FieldNames returns the canonical field names in output order.
func FieldNames() []string {
	out := make([]string, len(fields))
	for i := range fields {
		out[i] = fields[i].Name
	}
	return out
}

// ByName returns the canonical spec for a field name, or nil if unknown.
func ByName(name string) *FieldSpec {
	return byName[name]
}
