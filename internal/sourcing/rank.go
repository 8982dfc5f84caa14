package sourcing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/heraklist/evochia-ops/internal/model"
)

// lowest returns the cheapest offer by price per base unit. Offers without a
// positive price rank after every priced offer. Ties keep input order.
// offers must be non-empty.
func lowest(offers []model.Offer) model.Offer {
	best := offers[0]
	bestPrice, bestOK := best.UnitPrice()
	for _, o := range offers[1:] {
		p, ok := o.UnitPrice()
		if !ok {
			continue
		}
		if !bestOK || p.LessThan(bestPrice) {
			best, bestPrice, bestOK = o, p, true
		}
	}
	return best
}

// priceOf returns the offer's price per base unit, or zero when absent.
func priceOf(o model.Offer) decimal.Decimal {
	if !o.PricePerBaseUnit.Valid {
		return decimal.Zero
	}
	return o.PricePerBaseUnit.Decimal
}

// premiumPct returns (candidate - baseline) / baseline * 100.
func premiumPct(candidate, baseline decimal.Decimal) decimal.Decimal {
	return candidate.Sub(baseline).Div(baseline).Mul(decimal.NewFromInt(100))
}

// sameFold compares identifiers case-insensitively. A blank value never
// matches.
func sameFold(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

func filter(offers []model.Offer, keep func(model.Offer) bool) []model.Offer {
	out := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
