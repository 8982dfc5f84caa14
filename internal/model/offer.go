// Package model defines the documents exchanged between the sourcing engine,
// the recipe cost calculator, and their upstream/downstream collaborators.
package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Offer is a supplier's priced, packaged quote for a product. Offers are
// produced by an upstream importer and are never mutated by the core.
type Offer struct {
	OfferID          string              `json:"offer_id"`
	ProductID        string              `json:"product_id,omitempty"` // empty until mapped
	Supplier         string              `json:"supplier"`
	SupplierSKU      string              `json:"supplier_sku,omitempty"`
	Description      string              `json:"description,omitempty"`
	Category         string              `json:"category,omitempty"`
	Tier             string              `json:"tier,omitempty"`
	PackSize         *float64            `json:"pack_size,omitempty"`
	PackUnit         string              `json:"pack_unit,omitempty"`
	PriceUnit        string              `json:"price_unit,omitempty"`
	Price            decimal.NullDecimal `json:"price"`
	PricePerBaseUnit decimal.NullDecimal `json:"price_per_base_unit"`
	Currency         string              `json:"currency,omitempty"`
	VATRate          *float64            `json:"vat_rate,omitempty"`
	CapturedAt       string              `json:"captured_at,omitempty"` // parsed by the validity gate
	ValidUntil       string              `json:"valid_until,omitempty"`
	InStock          *bool               `json:"in_stock,omitempty"` // nil means absent, which is in stock
	AnomalyFlags     []string            `json:"anomaly_flags,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. An explicit "in_stock": null
// decodes as out of stock; only an absent key means in stock.
func (o *Offer) UnmarshalJSON(data []byte) error {
	type plain Offer
	var aux struct {
		plain
		InStock json.RawMessage `json:"in_stock"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return eris.Wrap(err, "model: decode offer")
	}
	*o = Offer(aux.plain)
	o.InStock = nil
	switch {
	case aux.InStock == nil:
	case bytes.Equal(bytes.TrimSpace(aux.InStock), []byte("null")):
		v := false
		o.InStock = &v
	default:
		var v bool
		if err := json.Unmarshal(aux.InStock, &v); err != nil {
			return eris.Wrap(err, "model: decode offer in_stock")
		}
		o.InStock = &v
	}
	return nil
}

// IsMapped reports whether the offer carries a product identity.
func (o Offer) IsMapped() bool {
	return strings.TrimSpace(o.ProductID) != ""
}

// Available reports whether the offer is in stock. Absent means in stock.
func (o Offer) Available() bool {
	return o.InStock == nil || *o.InStock
}

// HasSKU reports whether the offer carries a non-blank supplier SKU.
func (o Offer) HasSKU() bool {
	return strings.TrimSpace(o.SupplierSKU) != ""
}

// UnitPrice returns the price per base unit and whether it is usable for
// ranking (present and positive).
func (o Offer) UnitPrice() (decimal.Decimal, bool) {
	if !o.PricePerBaseUnit.Valid || !o.PricePerBaseUnit.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return o.PricePerBaseUnit.Decimal, true
}

// DisplayUnit returns the price unit, falling back to the pack unit.
func (o Offer) DisplayUnit() string {
	if o.PriceUnit != "" {
		return o.PriceUnit
	}
	return o.PackUnit
}

// unknownCategories are the category values treated as "not normalized".
var unknownCategories = map[string]bool{
	"":        true,
	"unknown": true,
	"none":    true,
	"null":    true,
}

// NormalizeCategory lower-cases and trims a category value.
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// CategoryKnown reports whether a category holds a canonical value.
func CategoryKnown(c string) bool {
	return !unknownCategories[NormalizeCategory(c)]
}

// OffersByID indexes offers by offer id. Later duplicates win.
func OffersByID(offers []Offer) map[string]Offer {
	idx := make(map[string]Offer, len(offers))
	for _, o := range offers {
		idx[o.OfferID] = o
	}
	return idx
}
