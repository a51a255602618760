package funnel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SKU identifies a purchasable line. Catalog JSON carries it either as a
// string or as a bare number.
type SKU string

// UnmarshalJSON accepts strings, numbers and null.
func (s *SKU) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		*s = ""
		return nil
	}
	if raw[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("sku_id: %w", err)
		}
		*s = SKU(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("sku_id: %w", err)
	}
	*s = SKU(n.String())
	return nil
}

// OptionAxis is one configurable dimension of a product such as color or size.
type OptionAxis struct {
	Title  string   `json:"title" yaml:"title"`
	Values []string `json:"values" yaml:"values"`
}

func (a *OptionAxis) has(value string) bool {
	if a == nil {
		return false
	}
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Association describes a second-axis value that can be combined with a
// first-axis value, along with the attributes of the resulting line.
type Association struct {
	Value              string `json:"value"`
	SKUID              SKU    `json:"sku_id"`
	Hex                string `json:"hex,omitempty"`
	Image              string `json:"image,omitempty"`
	Price              *int64 `json:"price,omitempty"`
	PriceAfterDiscount *int64 `json:"price_after_discount,omitempty"`
	Qty                *int   `json:"qty,omitempty"`
}

// ValueMeta carries per-value attributes used when only one axis resolves.
type ValueMeta struct {
	SKUID              SKU    `json:"sku_id"`
	Hex                string `json:"hex,omitempty"`
	Image              string `json:"image,omitempty"`
	Price              *int64 `json:"price,omitempty"`
	PriceAfterDiscount *int64 `json:"price_after_discount,omitempty"`
	Qty                *int   `json:"qty,omitempty"`
}

// OptionData is the static option catalog of one product.
type OptionData struct {
	FirstOption            *OptionAxis              `json:"firstOption,omitempty"`
	SecondOption           *OptionAxis              `json:"secondOption,omitempty"`
	Associations           map[string][]Association `json:"associations,omitempty"`
	FirstOptionMeta        map[string]ValueMeta     `json:"firstOptionData,omitempty"`
	SecondOptionMeta       map[string]ValueMeta     `json:"secondOptionData,omitempty"`
	BasePrice              int64                    `json:"base_price"`
	BasePriceAfterDiscount int64                    `json:"base_price_after_discount"`
	BaseImage              string                   `json:"base_image,omitempty"`
}

// HasFirstAxis reports whether the catalog defines a selectable first axis.
func (d *OptionData) HasFirstAxis() bool {
	return d != nil && d.FirstOption != nil && len(d.FirstOption.Values) > 0
}

// HasSecondAxis reports whether the catalog defines a selectable second axis.
func (d *OptionData) HasSecondAxis() bool {
	return d != nil && d.SecondOption != nil && len(d.SecondOption.Values) > 0
}

// NumberOfOptions counts the defined axes.
func (d *OptionData) NumberOfOptions() int {
	n := 0
	if d.HasFirstAxis() {
		n++
	}
	if d.HasSecondAxis() {
		n++
	}
	return n
}

// FirstValues returns a copy of the first-axis values.
func (d *OptionData) FirstValues() []string {
	if !d.HasFirstAxis() {
		return nil
	}
	return append([]string(nil), d.FirstOption.Values...)
}

// SecondValues returns a copy of the second-axis values.
func (d *OptionData) SecondValues() []string {
	if !d.HasSecondAxis() {
		return nil
	}
	return append([]string(nil), d.SecondOption.Values...)
}

// Complete reports whether the pair is a finished selection for this catalog.
func (d *OptionData) Complete(first, second string) bool {
	switch {
	case d.HasSecondAxis():
		return first != "" && second != ""
	case d.HasFirstAxis():
		return first != ""
	default:
		return true
	}
}

// SecondCandidates lists the second-axis values selectable under first. An
// empty first value, or a first value without an associations entry, leaves
// the full axis selectable.
func (d *OptionData) SecondCandidates(first string) []string {
	if !d.HasSecondAxis() {
		return nil
	}
	if first == "" {
		return d.SecondValues()
	}
	entries, ok := d.Associations[first]
	if !ok {
		return d.SecondValues()
	}
	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Value]; dup {
			continue
		}
		seen[entry.Value] = struct{}{}
		out = append(out, entry.Value)
	}
	return out
}

// Line is the purchasable line a selection resolves to.
type Line struct {
	SKUID              SKU
	Hex                string
	Price              int64
	PriceAfterDiscount int64
	Image              string
}

func (d *OptionData) association(first, second string) (Association, bool) {
	if d == nil || first == "" {
		return Association{}, false
	}
	for _, entry := range d.Associations[first] {
		if entry.Value == second {
			return entry, true
		}
	}
	return Association{}, false
}

// soleAssociation returns the entry of a first value when the catalog has no
// second axis and the association table still keys lines by first value.
func (d *OptionData) soleAssociation(first string) (Association, bool) {
	if d == nil || first == "" || d.HasSecondAxis() {
		return Association{}, false
	}
	entries := d.Associations[first]
	if len(entries) == 0 {
		return Association{}, false
	}
	return entries[0], true
}

func (d *OptionData) firstMeta(first string) (ValueMeta, bool) {
	if d == nil || first == "" {
		return ValueMeta{}, false
	}
	meta, ok := d.FirstOptionMeta[first]
	return meta, ok
}

func (d *OptionData) secondMeta(second string) (ValueMeta, bool) {
	if d == nil || second == "" || !d.HasSecondAxis() {
		return ValueMeta{}, false
	}
	meta, ok := d.SecondOptionMeta[second]
	return meta, ok
}

// Resolve derives the line for a partial or full selection. The first
// matching source wins: the association of the pair, the sole association of
// a first value on a single-axis catalog, second-axis metadata when only the
// second value is chosen, first-axis metadata when only the first value is
// chosen, then the catalog base values. A pair without an association
// resolves to the base values.
func (d *OptionData) Resolve(first, second string) Line {
	if d == nil {
		return Line{}
	}
	if first != "" && second != "" {
		if entry, ok := d.association(first, second); ok {
			return d.line(entry.SKUID, entry.Hex, entry.Image, entry.Price, entry.PriceAfterDiscount)
		}
	}
	if entry, ok := d.soleAssociation(first); ok {
		return d.line(entry.SKUID, entry.Hex, entry.Image, entry.Price, entry.PriceAfterDiscount)
	}
	if first == "" {
		if meta, ok := d.secondMeta(second); ok {
			return d.line(meta.SKUID, meta.Hex, meta.Image, meta.Price, meta.PriceAfterDiscount)
		}
	}
	if second == "" {
		if meta, ok := d.firstMeta(first); ok {
			return d.line(meta.SKUID, meta.Hex, meta.Image, meta.Price, meta.PriceAfterDiscount)
		}
	}
	return Line{
		Price:              d.BasePrice,
		PriceAfterDiscount: d.BasePriceAfterDiscount,
		Image:              d.BaseImage,
	}
}

func (d *OptionData) line(sku SKU, hex, image string, price, discounted *int64) Line {
	out := Line{
		SKUID:              sku,
		Hex:                hex,
		Image:              image,
		Price:              d.BasePrice,
		PriceAfterDiscount: d.BasePriceAfterDiscount,
	}
	if price != nil {
		out.Price = *price
		out.PriceAfterDiscount = *price
	}
	if discounted != nil {
		out.PriceAfterDiscount = *discounted
	}
	if out.Image == "" {
		out.Image = d.BaseImage
	}
	return out
}

// MaxQuantity derives the stock cap of a selection in the same order as
// Resolve, then falls back to the catalog-wide maximum.
// The boolean is false when no entry carries a quantity at all.
func (d *OptionData) MaxQuantity(first, second string) (int, bool) {
	if d == nil {
		return 0, false
	}
	if first != "" && second != "" {
		if entry, ok := d.association(first, second); ok && entry.Qty != nil {
			return *entry.Qty, true
		}
	}
	if entry, ok := d.soleAssociation(first); ok && entry.Qty != nil {
		return *entry.Qty, true
	}
	if meta, ok := d.secondMeta(second); ok && first == "" && meta.Qty != nil {
		return *meta.Qty, true
	}
	if meta, ok := d.firstMeta(first); ok && second == "" && meta.Qty != nil {
		return *meta.Qty, true
	}
	return d.CatalogMaxQuantity()
}

// CatalogMaxQuantity returns the largest quantity recorded anywhere in the
// catalog.
func (d *OptionData) CatalogMaxQuantity() (int, bool) {
	if d == nil {
		return 0, false
	}
	best, found := 0, false
	consider := func(q *int) {
		if q == nil {
			return
		}
		if !found || *q > best {
			best = *q
			found = true
		}
	}
	for _, entries := range d.Associations {
		for _, entry := range entries {
			consider(entry.Qty)
		}
	}
	for _, meta := range d.FirstOptionMeta {
		consider(meta.Qty)
	}
	for _, meta := range d.SecondOptionMeta {
		consider(meta.Qty)
	}
	return best, found
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
