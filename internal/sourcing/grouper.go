// Package sourcing chooses one supplier offer per product under LOCK, BAN
// and PREFER policies and price freshness rules.
package sourcing

import (
	"fmt"
	"time"

	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/validity"
)

// DefaultTier is used when a group's first candidate carries no tier.
const DefaultTier = "standard"

// Issue codes emitted while screening and grouping offers.
const (
	CodeUnmapped         = "SRC-UNMAPPED"
	CodeNoCapturedAt     = "SRC-NO-CAPTURED-AT"
	CodePriceTooOld      = "SRC-PRICE-TOO-OLD"
	CodePriceStale       = "SRC-PRICE-STALE"
	CodeValidUntilPassed = "SRC-VALID-UNTIL-PASSED"
	CodeNoInStock        = "SRC-NO-INSTOCK"
)

// Group is the in-stock, gate-surviving candidate set for one product.
type Group struct {
	ProductID string
	// Category is the first candidate's category, lower-cased.
	Category string
	// Tier is the first candidate's tier, or DefaultTier.
	Tier   string
	Offers []model.Offer
}

// CategoryKnown reports whether the group category is usable by PREFER.
func (g Group) CategoryKnown() bool {
	return model.CategoryKnown(g.Category)
}

// Screen applies the mapping check and the validity gate to every offer.
// It returns the surviving offers in input order plus one issue per
// rejected or flagged offer. Stale offers survive with a warning.
func Screen(offers []model.Offer, gate validity.Gate, now time.Time) ([]model.Offer, model.Issues) {
	var (
		kept   []model.Offer
		issues model.Issues
	)
	for _, o := range offers {
		if !o.IsMapped() {
			issues.Add(model.Block(CodeUnmapped, "Offer has no product_id (needs mapping)").WithOffer(o.OfferID))
			continue
		}

		v := gate.Check(o.CapturedAt, o.ValidUntil, now)
		switch v.Reason {
		case validity.ReasonNoCapturedAt:
			issues.Add(model.Block(CodeNoCapturedAt, "Missing/invalid captured_at").WithOffer(o.OfferID))
			continue
		case validity.ReasonTooOld:
			issues.Add(model.Block(CodePriceTooOld, fmt.Sprintf("Price older than %d days", gate.BlockAfterDays)).
				WithOffer(o.OfferID).WithProduct(o.ProductID).WithAge(v.AgeDays))
			continue
		case validity.ReasonPastMaxAge:
			issues.Add(model.Warning(CodePriceStale, fmt.Sprintf("Price older than %d days", gate.MaxAgeDays)).
				WithOffer(o.OfferID).WithProduct(o.ProductID).WithAge(v.AgeDays))
		}
		if v.Expired {
			issues.Add(model.Warning(CodeValidUntilPassed, "valid_until has passed").
				WithOffer(o.OfferID).WithProduct(o.ProductID))
		}
		kept = append(kept, o)
	}
	return kept, issues
}

// GroupOffers partitions screened offers by product in first-seen order and
// keeps only in-stock offers. A product with no in-stock offer produces a
// SRC-NO-INSTOCK block and no group.
func GroupOffers(offers []model.Offer) ([]Group, model.Issues) {
	order, byProduct := partition(offers)

	var issues model.Issues
	groups := make([]Group, 0, len(order))
	for _, pid := range order {
		g, iss := inStockGroup(pid, byProduct[pid])
		if iss != nil {
			issues.Add(*iss)
			continue
		}
		groups = append(groups, g)
	}
	return groups, issues
}

// partition buckets offers by product id and returns the ids in first-seen
// order.
func partition(offers []model.Offer) ([]string, map[string][]model.Offer) {
	var order []string
	byProduct := make(map[string][]model.Offer)
	for _, o := range offers {
		if _, ok := byProduct[o.ProductID]; !ok {
			order = append(order, o.ProductID)
		}
		byProduct[o.ProductID] = append(byProduct[o.ProductID], o)
	}
	return order, byProduct
}

// inStockGroup builds the group for one product from its in-stock offers.
func inStockGroup(pid string, offers []model.Offer) (Group, *model.Issue) {
	var inStock []model.Offer
	for _, o := range offers {
		if o.Available() {
			inStock = append(inStock, o)
		}
	}
	if len(inStock) == 0 {
		iss := model.Block(CodeNoInStock, "No in-stock offers").WithProduct(pid)
		return Group{}, &iss
	}

	tier := inStock[0].Tier
	if tier == "" {
		tier = DefaultTier
	}
	return Group{
		ProductID: pid,
		Category:  model.NormalizeCategory(inStock[0].Category),
		Tier:      tier,
		Offers:    inStock,
	}, nil
}
