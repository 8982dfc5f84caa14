package sourcing

import "github.com/heraklist/evochia-ops/internal/model"

// DecisionSet indexes decisions by product. Entries without a product or a
// chosen offer are ignored; a later decision for the same product replaces
// an earlier one.
type DecisionSet struct {
	byProduct map[string]model.Decision
	order     []string
}

// NewDecisionSet builds a DecisionSet.
func NewDecisionSet(decisions []model.Decision) *DecisionSet {
	s := &DecisionSet{byProduct: make(map[string]model.Decision, len(decisions))}
	for _, d := range decisions {
		if d.ProductID == "" || d.ChosenOfferID == "" {
			continue
		}
		if _, ok := s.byProduct[d.ProductID]; !ok {
			s.order = append(s.order, d.ProductID)
		}
		s.byProduct[d.ProductID] = d
	}
	return s
}

// Get returns the decision for a product.
func (s *DecisionSet) Get(productID string) (model.Decision, bool) {
	d, ok := s.byProduct[productID]
	return d, ok
}

// ChosenOffer returns the chosen offer id for a product.
func (s *DecisionSet) ChosenOffer(productID string) (string, bool) {
	d, ok := s.byProduct[productID]
	if !ok {
		return "", false
	}
	return d.ChosenOfferID, true
}

// Len returns the number of indexed products.
func (s *DecisionSet) Len() int { return len(s.order) }

// All returns the decisions in first-seen product order.
func (s *DecisionSet) All() []model.Decision {
	out := make([]model.Decision, 0, len(s.order))
	for _, pid := range s.order {
		out = append(out, s.byProduct[pid])
	}
	return out
}
