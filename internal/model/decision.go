package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleApplied names the rule that fired for a decision.
type RuleApplied string

const (
	AppliedLock              RuleApplied = "LOCK"
	AppliedPrefer            RuleApplied = "PREFER"
	AppliedBanFilteredLowest RuleApplied = "BAN_FILTERED_LOWEST"
	AppliedLowest            RuleApplied = "LOWEST"
)

// Reason codes accumulated on a decision.
const (
	ReasonLockEnforced    = "LOCK_ENFORCED"
	ReasonBanFiltered     = "BAN_FILTERED"
	ReasonPreferApplied   = "PREFER_APPLIED"
	ReasonCategoryUnknown = "CATEGORY_UNKNOWN_FALLBACK_LOWEST"
	ReasonNoSKUKey        = "NO_SKU_KEY"
)

// Decision keys identify how the chosen offer is matched on re-order.
const (
	DecisionKeySupplierSKU   = "supplier_sku"
	DecisionKeyDescPackExact = "desc_pack_exact"
)

// MaxCandidatesConsidered bounds the short candidate view on a decision.
const MaxCandidatesConsidered = 5

// Candidate is the audit view of one post-filter candidate offer.
type Candidate struct {
	Supplier         string          `json:"supplier"`
	OfferID          string          `json:"offer_id"`
	PricePerBaseUnit decimal.Decimal `json:"price_per_base_unit"`
	CapturedAt       string          `json:"captured_at,omitempty"`
	PriceUnit        string          `json:"price_unit,omitempty"`
}

// Alternative is a non-chosen candidate with its percentage price difference
// from the chosen offer. DiffPct is nil when the chosen price is zero.
type Alternative struct {
	Candidate
	DiffPct *float64 `json:"diff_pct"`
}

// PolicyHit records a policy rule that affected the outcome.
type PolicyHit struct {
	Rule   RuleKind   `json:"rule"`
	Policy PolicyRule `json:"policy"`
}

// Decision is the resolved single offer for a product in one run.
type Decision struct {
	ProductID            string          `json:"product_id"`
	ChosenOfferID        string          `json:"chosen_offer_id"`
	SelectedSupplier     string          `json:"selected_supplier"`
	DecisionKey          string          `json:"decision_key"`
	RuleApplied          RuleApplied     `json:"rule_applied"`
	Candidates           []Candidate     `json:"candidates"`
	CandidatesConsidered []Candidate     `json:"candidates_considered"`
	PolicyHits           []PolicyHit     `json:"policy_hits"`
	Alternatives         []Alternative   `json:"alternatives"`
	OverrideRef          *PolicyRule     `json:"override_ref"`
	ReasonCodes          []string        `json:"reason_codes"`
	LowestGlobalOfferID  string          `json:"lowest_global_offer_id"`
	LowestGlobalPrice    decimal.Decimal `json:"lowest_global_price_per_base_unit"`
	ChosenPrice          decimal.Decimal `json:"chosen_price_per_base_unit"`
	SavingsVsLowest      decimal.Decimal `json:"savings_vs_lowest_global_per_base_unit"`
	DecisionTS           time.Time       `json:"decision_ts"`
}

// HasReason reports whether the decision carries the reason code.
func (d Decision) HasReason(code string) bool {
	for _, r := range d.ReasonCodes {
		if r == code {
			return true
		}
	}
	return false
}
