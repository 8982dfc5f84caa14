package sourcing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/validity"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) string {
	return now.AddDate(0, 0, -d).Format(time.RFC3339)
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func offer(id, productID, supplier, ppu string) model.Offer {
	return model.Offer{
		OfferID:          id,
		ProductID:        productID,
		Supplier:         supplier,
		SupplierSKU:      "SKU-" + id,
		Category:         "produce",
		PackUnit:         "kg",
		PricePerBaseUnit: price(ppu),
		CapturedAt:       daysAgo(2),
	}
}

func outOfStock(o model.Offer) model.Offer {
	f := false
	o.InStock = &f
	return o
}

func engineOff() Options {
	return Options{Gate: validity.DefaultGate(), ServiceTag: DefaultServiceTag}
}

func engineOn() Options {
	o := engineOff()
	o.Mode.PolicyEngineEnabled = true
	return o
}

func decisionFor(res Result, productID string) (model.Decision, bool) {
	for _, d := range res.Decisions {
		if d.ProductID == productID {
			return d, true
		}
	}
	return model.Decision{}, false
}
