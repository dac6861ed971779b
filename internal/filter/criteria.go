// Package filter maps catalog search intent to and from its query-string form.
package filter

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names one filter
type Field string

// Recognized query keys
const (
	FieldName     Field = "name"
	FieldCategory Field = "category"
	FieldMinPrice Field = "min_price"
	FieldMaxPrice Field = "max_price"
)

// Fields lists every recognized field in display order
var Fields = []Field{FieldName, FieldCategory, FieldMinPrice, FieldMaxPrice}

// Criteria is the catalog search intent. A nil field is absent; the zero
// value means no filtering.
type Criteria struct {
	Name     *string          `json:"name,omitempty"`
	Category *string          `json:"category,omitempty"`
	MinPrice *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice *decimal.Decimal `json:"max_price,omitempty"`

	// price text as read from the query, echoed back by ToQuery
	minRaw string
	maxRaw string
}

// FromQuery reads the recognized keys of q. Empty values are absent, and so
// are prices that are not non-negative numbers. Values are kept as sent.
func FromQuery(q url.Values) Criteria {
	var c Criteria
	if v := q.Get(string(FieldName)); v != "" {
		c.Name = &v
	}
	if v := q.Get(string(FieldCategory)); v != "" {
		c.Category = &v
	}
	c.MinPrice, c.minRaw = parsePrice(q.Get(string(FieldMinPrice)))
	c.MaxPrice, c.maxRaw = parsePrice(q.Get(string(FieldMaxPrice)))
	return c
}

func parsePrice(raw string) (*decimal.Decimal, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ""
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil || d.IsNegative() {
		return nil, ""
	}
	return &d, raw
}

// ToQuery emits only the present fields, in the text they were read with.
// Prices set directly use their canonical decimal form.
func (c Criteria) ToQuery() url.Values {
	q := c.names()
	if c.MinPrice != nil {
		q.Set(string(FieldMinPrice), priceText(*c.MinPrice, c.minRaw))
	}
	if c.MaxPrice != nil {
		q.Set(string(FieldMaxPrice), priceText(*c.MaxPrice, c.maxRaw))
	}
	return q
}

// SearchQuery is the query sent to the remote search. Prices always use the
// canonical decimal form, so "2.50" is sent as "2.5".
func (c Criteria) SearchQuery() url.Values {
	q := c.names()
	if c.MinPrice != nil {
		q.Set(string(FieldMinPrice), c.MinPrice.String())
	}
	if c.MaxPrice != nil {
		q.Set(string(FieldMaxPrice), c.MaxPrice.String())
	}
	return q
}

func (c Criteria) names() url.Values {
	q := url.Values{}
	if c.Name != nil {
		q.Set(string(FieldName), *c.Name)
	}
	if c.Category != nil {
		q.Set(string(FieldCategory), *c.Category)
	}
	return q
}

func priceText(d decimal.Decimal, raw string) string {
	if raw != "" {
		return raw
	}
	return d.String()
}

// IsEmpty reports whether every field is absent
func (c Criteria) IsEmpty() bool {
	return c.ActiveCount() == 0
}

// ActiveCount returns the number of present fields, for the filter badge
func (c Criteria) ActiveCount() int {
	n := 0
	for _, f := range Fields {
		if c.Has(f) {
			n++
		}
	}
	return n
}

// Has reports whether field is present
func (c Criteria) Has(field Field) bool {
	switch field {
	case FieldName:
		return c.Name != nil
	case FieldCategory:
		return c.Category != nil
	case FieldMinPrice:
		return c.MinPrice != nil
	case FieldMaxPrice:
		return c.MaxPrice != nil
	}
	return false
}

// Clearing returns a copy with exactly field removed
func (c Criteria) Clearing(field Field) Criteria {
	switch field {
	case FieldName:
		c.Name = nil
	case FieldCategory:
		c.Category = nil
	case FieldMinPrice:
		c.MinPrice, c.minRaw = nil, ""
	case FieldMaxPrice:
		c.MaxPrice, c.maxRaw = nil, ""
	}
	return c
}

// ToggleCategory backs the quick category buttons: picking the active
// category clears it, any other replaces it.
func (c Criteria) ToggleCategory(category string) Criteria {
	if c.Category != nil && *c.Category == category {
		return c.Clearing(FieldCategory)
	}
	if category == "" {
		return c.Clearing(FieldCategory)
	}
	c.Category = &category
	return c
}

// Href is the storefront path that shows the listing for c
func (c Criteria) Href() string {
	qs := c.ToQuery().Encode()
	if qs == "" {
		return "/"
	}
	return "/?" + qs
}

// Chip is one active filter as shown in the chip strip
type Chip struct {
	Field Field  `json:"field"`
	Label string `json:"label"`
	Value string `json:"value"`
	// ClearURL is the query string with this filter removed
	ClearURL string `json:"clear_url"`
}

// Chips returns the active filters in display order
func (c Criteria) Chips() []Chip {
	chips := make([]Chip, 0, 4)
	add := func(f Field, label, value string) {
		chips = append(chips, Chip{Field: f, Label: label, Value: value, ClearURL: c.Clearing(f).Href()})
	}

	if c.Name != nil {
		add(FieldName, "Name", *c.Name)
	}
	if c.Category != nil {
		add(FieldCategory, "Category", *c.Category)
	}
	if c.MinPrice != nil {
		add(FieldMinPrice, "Min", "$"+c.MinPrice.StringFixed(2))
	}
	if c.MaxPrice != nil {
		add(FieldMaxPrice, "Max", "$"+c.MaxPrice.StringFixed(2))
	}
	return chips
}
