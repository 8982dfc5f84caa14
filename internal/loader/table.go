package loader

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/heraklist/evochia-ops/internal/model"
)

// offerColumns maps accepted header names to canonical offer columns.
var offerColumns = map[string]string{
	"offer_id":            "offer_id",
	"product_id":          "product_id",
	"supplier":            "supplier",
	"supplier_id":         "supplier",
	"supplier_sku":        "supplier_sku",
	"sku":                 "supplier_sku",
	"description":         "description",
	"category":            "category",
	"tier":                "tier",
	"pack_size":           "pack_size",
	"pack_unit":           "pack_unit",
	"price_unit":          "price_unit",
	"price":               "price",
	"price_per_base_unit": "price_per_base_unit",
	"currency":            "currency",
	"vat_rate":            "vat_rate",
	"captured_at":         "captured_at",
	"valid_until":         "valid_until",
	"in_stock":            "in_stock",
	"anomaly_flags":       "anomaly_flags",
}

// offersFromTable converts a header row plus data rows into offers. Unknown
// columns are ignored and blank rows skipped. A malformed numeric or boolean
// cell fails the whole table.
func offersFromTable(header []string, rows [][]string) ([]model.Offer, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := offerColumns[key]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	if _, ok := index["offer_id"]; !ok {
		return nil, eris.New("loader: offer table has no offer_id column")
	}

	offers := make([]model.Offer, 0, len(rows))
	for n, row := range rows {
		if blankRow(row) {
			continue
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		line := n + 2 // header is line 1

		o := model.Offer{
			OfferID:     cell("offer_id"),
			ProductID:   cell("product_id"),
			Supplier:    cell("supplier"),
			SupplierSKU: cell("supplier_sku"),
			Description: cell("description"),
			Category:    cell("category"),
			Tier:        cell("tier"),
			PackUnit:    cell("pack_unit"),
			PriceUnit:   cell("price_unit"),
			Currency:    cell("currency"),
			CapturedAt:  cell("captured_at"),
			ValidUntil:  cell("valid_until"),
		}

		var err error
		if o.PackSize, err = parseFloatPtr(cell("pack_size")); err != nil {
			return nil, eris.Wrapf(err, "loader: row %d pack_size", line)
		}
		if o.VATRate, err = parseFloatPtr(cell("vat_rate")); err != nil {
			return nil, eris.Wrapf(err, "loader: row %d vat_rate", line)
		}
		if o.Price, err = parseNullDecimal(cell("price")); err != nil {
			return nil, eris.Wrapf(err, "loader: row %d price", line)
		}
		if o.PricePerBaseUnit, err = parseNullDecimal(cell("price_per_base_unit")); err != nil {
			return nil, eris.Wrapf(err, "loader: row %d price_per_base_unit", line)
		}
		if o.InStock, err = parseBoolPtr(cell("in_stock")); err != nil {
			return nil, eris.Wrapf(err, "loader: row %d in_stock", line)
		}
		o.AnomalyFlags = splitFlags(cell("anomaly_flags"))

		offers = append(offers, o)
	}
	return offers, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalizeNumber accepts a decimal comma when no dot is present.
func normalizeNumber(s string) string {
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", ".")
	}
	return s
}

func parseFloatPtr(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(normalizeNumber(s), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse number %q", s)
	}
	return &v, nil
}

func parseNullDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return decimal.NullDecimal{}, eris.Wrapf(err, "parse decimal %q", s)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseBoolPtr(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	var v bool
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		v = true
	case "false", "no", "n", "0":
		v = false
	default:
		return nil, eris.Errorf("parse bool %q", s)
	}
	return &v, nil
}

func splitFlags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
