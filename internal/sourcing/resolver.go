package sourcing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/heraklist/evochia-ops/internal/model"
)

// DefaultServiceTag is the service type used when none is configured.
const DefaultServiceTag = "CAT"

// Issue codes emitted by the resolver.
const (
	CodeLockNotFound = "SRC-LOCK-NOT-FOUND"
	CodeAllBanned    = "SRC-ALL-BANNED"
)

// PolicyMode controls which policy rules run. LOCK rules always run.
type PolicyMode struct {
	PolicyEngineEnabled  bool     `json:"policy_engine_enabled" mapstructure:"policy_engine_enabled"`
	StagedRolloutEnabled bool     `json:"staged_rollout_enabled" mapstructure:"staged_rollout_enabled"`
	RolloutCategories    []string `json:"rollout_categories" mapstructure:"rollout_categories"`
}

// ModeFromPhase folds the legacy numeric phase into a PolicyMode. Phase 2
// and above enable the policy engine.
func ModeFromPhase(phase int, enable bool) PolicyMode {
	return PolicyMode{PolicyEngineEnabled: enable || phase >= 2}
}

// Resolver picks one offer per product group.
type Resolver struct {
	locks      map[string]model.PolicyRule
	bans       []model.PolicyRule
	prefers    []model.PolicyRule
	mode       PolicyMode
	rollout    map[string]bool
	serviceTag string
	now        time.Time
}

// NewResolver indexes rules by kind. LOCK rules need a product_id and a
// supplier; a later LOCK for the same product replaces an earlier one. BAN
// and PREFER keep their declared order.
func NewResolver(rules []model.PolicyRule, mode PolicyMode, serviceTag string, now time.Time) *Resolver {
	if serviceTag == "" {
		serviceTag = DefaultServiceTag
	}
	r := &Resolver{
		locks:      make(map[string]model.PolicyRule),
		mode:       mode,
		rollout:    make(map[string]bool, len(mode.RolloutCategories)),
		serviceTag: serviceTag,
		now:        now,
	}
	for _, c := range mode.RolloutCategories {
		if c = model.NormalizeCategory(c); c != "" {
			r.rollout[c] = true
		}
	}
	for _, rule := range rules {
		switch rule.Kind() {
		case model.RuleLock:
			if rule.ProductID != "" && rule.TargetSupplier() != "" {
				r.locks[rule.ProductID] = rule
			}
		case model.RuleBan:
			r.bans = append(r.bans, rule)
		case model.RulePrefer:
			r.prefers = append(r.prefers, rule)
		}
	}
	return r
}

// selectorsMatch reports whether the rule applies to this run's service type
// and the group tier. Absent selectors match anything.
func (r *Resolver) selectorsMatch(rule model.PolicyRule, tier string) bool {
	fold := cases.Fold()
	contains := func(list model.StringList, v string) bool {
		v = fold.String(strings.TrimSpace(v))
		for _, item := range list {
			if fold.String(strings.TrimSpace(item)) == v {
				return true
			}
		}
		return false
	}
	if rule.Selectors.ServiceType != nil && !contains(rule.Selectors.ServiceType, r.serviceTag) {
		return false
	}
	if rule.Selectors.Tier != nil && !contains(rule.Selectors.Tier, tier) {
		return false
	}
	return true
}

// gatedByRollout reports whether staged rollout suppresses a category-scoped
// rule for this group.
func (r *Resolver) gatedByRollout(rule model.PolicyRule, category string) bool {
	if !r.mode.StagedRolloutEnabled || rule.NormalizedScope() != model.ScopeCategory {
		return false
	}
	return !r.rollout[category]
}

// resolution accumulates the audit trail while one group is resolved.
type resolution struct {
	candidates []model.Offer
	chosen     model.Offer
	applied    model.RuleApplied
	override   *model.PolicyRule
	hits       []model.PolicyHit
	reasons    []string
}

func (res *resolution) hit(kind model.RuleKind, rule model.PolicyRule, reason string) {
	res.hits = append(res.hits, model.PolicyHit{Rule: kind, Policy: rule})
	res.reasons = append(res.reasons, reason)
}

// Resolve produces the decision for one group. A non-nil issue means the
// product was blocked and the decision is empty.
func (r *Resolver) Resolve(g Group) (model.Decision, *model.Issue) {
	res := &resolution{
		candidates: g.Offers,
		applied:    model.AppliedLowest,
	}

	if lock, ok := r.locks[g.ProductID]; ok && r.selectorsMatch(lock, g.Tier) {
		supplier := lock.TargetSupplier()
		matches := filter(res.candidates, func(o model.Offer) bool {
			if !sameFold(o.Supplier, supplier) {
				return false
			}
			return lock.SupplierSKU == "" || strings.TrimSpace(o.SupplierSKU) == strings.TrimSpace(lock.SupplierSKU)
		})
		if len(matches) == 0 {
			iss := model.Block(CodeLockNotFound, fmt.Sprintf("LOCK supplier '%s' has no available offer", supplier)).
				WithProduct(g.ProductID)
			return model.Decision{}, &iss
		}
		rule := lock
		res.chosen = lowest(matches)
		res.applied = model.AppliedLock
		res.override = &rule
		res.hit(model.RuleLock, lock, model.ReasonLockEnforced)
		return r.decide(g, res), nil
	}

	if !r.mode.PolicyEngineEnabled {
		res.chosen = lowest(res.candidates)
		return r.decide(g, res), nil
	}

	banned := r.applyBans(g, res)
	if len(res.candidates) == 0 {
		iss := model.Block(CodeAllBanned, "All candidate offers filtered by BAN rules").WithProduct(g.ProductID)
		return model.Decision{}, &iss
	}

	baseline := lowest(res.candidates)
	res.chosen = baseline
	if banned && baseline.OfferID != lowest(g.Offers).OfferID {
		res.applied = model.AppliedBanFilteredLowest
	}

	if !g.CategoryKnown() {
		res.reasons = append(res.reasons, model.ReasonCategoryUnknown)
		return r.decide(g, res), nil
	}

	if pick, rule, ok := r.applyPrefers(g, res.candidates, baseline); ok {
		res.chosen = pick
		res.applied = model.AppliedPrefer
		res.override = &rule
		res.hit(model.RulePrefer, rule, model.ReasonPreferApplied)
	}
	return r.decide(g, res), nil
}

// applyBans removes banned candidates in rule order and reports whether any
// rule removed anything.
func (r *Resolver) applyBans(g Group, res *resolution) bool {
	banned := false
	for _, ban := range r.bans {
		if !r.selectorsMatch(ban, g.Tier) || r.gatedByRollout(ban, g.Category) {
			continue
		}
		supplier := ban.TargetSupplier()
		var drop func(model.Offer) bool
		switch ban.NormalizedScope() {
		case model.ScopeCategory:
			match := model.NormalizeCategory(ban.Match)
			drop = func(o model.Offer) bool {
				return sameFold(o.Supplier, supplier) && model.NormalizeCategory(o.Category) == match
			}
		case model.ScopeProduct:
			drop = func(o model.Offer) bool {
				return sameFold(o.Supplier, supplier) && o.ProductID == ban.Match
			}
		case model.ScopeSupplier:
			target := ban.Match
			if target == "" {
				target = supplier
			}
			drop = func(o model.Offer) bool {
				return sameFold(o.Supplier, target)
			}
		default:
			zap.L().Debug("sourcing: ban rule with unknown scope ignored",
				zap.String("rule_id", ban.ID), zap.String("scope", string(ban.Scope)))
			continue
		}

		before := len(res.candidates)
		res.candidates = filter(res.candidates, func(o model.Offer) bool { return !drop(o) })
		if len(res.candidates) < before {
			banned = true
			res.hit(model.RuleBan, ban, model.ReasonBanFiltered)
		}
	}
	return banned
}

// applyPrefers scans PREFER rules in declared order and returns the first
// pool-lowest offer whose premium over the baseline is within the rule's
// limit.
func (r *Resolver) applyPrefers(g Group, candidates []model.Offer, baseline model.Offer) (model.Offer, model.PolicyRule, bool) {
	basePrice, ok := baseline.UnitPrice()
	if !ok {
		return model.Offer{}, model.PolicyRule{}, false
	}
	for _, pref := range r.prefers {
		if !r.selectorsMatch(pref, g.Tier) || r.gatedByRollout(pref, g.Category) {
			continue
		}
		supplier := pref.TargetSupplier()
		var pool []model.Offer
		switch pref.NormalizedScope() {
		case model.ScopeCategory:
			match := model.NormalizeCategory(pref.Match)
			pool = filter(candidates, func(o model.Offer) bool {
				return model.NormalizeCategory(o.Category) == match && sameFold(o.Supplier, supplier)
			})
		case model.ScopeProduct:
			pool = filter(candidates, func(o model.Offer) bool {
				return o.ProductID == pref.Match && sameFold(o.Supplier, supplier)
			})
		case model.ScopeSupplier:
			target := pref.Match
			if target == "" {
				target = supplier
			}
			pool = filter(candidates, func(o model.Offer) bool { return sameFold(o.Supplier, target) })
		default:
			pool = candidates
		}
		if len(pool) == 0 {
			continue
		}

		cand := lowest(pool)
		candPrice, ok := cand.UnitPrice()
		if !ok {
			continue
		}
		premium := premiumPct(candPrice, basePrice)
		if premium.LessThanOrEqual(decimal.NewFromFloat(pref.MaxPremiumPct)) {
			zap.L().Debug("sourcing: prefer rule applied",
				zap.String("product_id", g.ProductID),
				zap.String("supplier", cand.Supplier),
				zap.String("premium_pct", premium.StringFixed(4)),
			)
			return cand, pref, true
		}
	}
	return model.Offer{}, model.PolicyRule{}, false
}

// decide builds the decision record from a completed resolution.
func (r *Resolver) decide(g Group, res *resolution) model.Decision {
	chosenPrice := priceOf(res.chosen)
	low := lowest(res.candidates)
	lowPrice := priceOf(low)

	view := make([]model.Candidate, 0, len(res.candidates))
	alts := make([]model.Alternative, 0, len(res.candidates))
	for _, o := range res.candidates {
		c := model.Candidate{
			Supplier:         o.Supplier,
			OfferID:          o.OfferID,
			PricePerBaseUnit: priceOf(o),
			CapturedAt:       o.CapturedAt,
			PriceUnit:        o.DisplayUnit(),
		}
		view = append(view, c)
		if o.OfferID == res.chosen.OfferID {
			continue
		}
		alt := model.Alternative{Candidate: c}
		if !chosenPrice.IsZero() {
			diff := premiumPct(c.PricePerBaseUnit, chosenPrice).Round(2).InexactFloat64()
			alt.DiffPct = &diff
		}
		alts = append(alts, alt)
	}

	considered := view
	if len(considered) > model.MaxCandidatesConsidered {
		considered = considered[:model.MaxCandidatesConsidered]
	}

	key := model.DecisionKeySupplierSKU
	if !res.chosen.HasSKU() {
		key = model.DecisionKeyDescPackExact
		res.reasons = append(res.reasons, model.ReasonNoSKUKey)
	}

	hits := res.hits
	if hits == nil {
		hits = []model.PolicyHit{}
	}
	reasons := res.reasons
	if reasons == nil {
		reasons = []string{}
	}

	return model.Decision{
		ProductID:            g.ProductID,
		ChosenOfferID:        res.chosen.OfferID,
		SelectedSupplier:     res.chosen.Supplier,
		DecisionKey:          key,
		RuleApplied:          res.applied,
		Candidates:           view,
		CandidatesConsidered: considered,
		PolicyHits:           hits,
		Alternatives:         alts,
		OverrideRef:          res.override,
		ReasonCodes:          reasons,
		LowestGlobalOfferID:  low.OfferID,
		LowestGlobalPrice:    lowPrice,
		ChosenPrice:          chosenPrice,
		SavingsVsLowest:      lowPrice.Sub(chosenPrice).Round(6),
		DecisionTS:           r.now,
	}
}
