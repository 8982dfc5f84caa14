package sourcing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heraklist/evochia-ops/internal/model"
)

func TestOptimize_NoInStockProducesNoDecision(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		outOfStock(offer("a1", "P1", "alios", "1.00")),
		outOfStock(offer("b1", "P1", "themart", "0.90")),
		offer("c1", "P2", "alios", "2.00"),
	}
	res := Optimize(offers, nil, engineOn(), now)

	_, ok := decisionFor(res, "P1")
	assert.False(t, ok)
	require.Len(t, res.Issues.ByCode(CodeNoInStock), 1)
	assert.Equal(t, "P1", res.Issues.ByCode(CodeNoInStock)[0].ProductID)
	assert.Len(t, res.Decisions, 1)
}

func TestOptimize_IssuesFollowProductOrder(t *testing.T) {
	t.Parallel()

	stale := offer("d1", "P4", "alios", "3.00")
	stale.CapturedAt = daysAgo(20)
	offers := []model.Offer{
		offer("a1", "P1", "alios", "1.00"),
		outOfStock(offer("b1", "P2", "alios", "1.00")),
		offer("c1", "P3", "themart", "1.00"),
		stale,
	}
	rules := []model.PolicyRule{
		{Rule: model.RuleLock, ProductID: "P1", Supplier: "kritikos"},
		{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "themart"},
	}
	res := Optimize(offers, rules, engineOn(), now)

	type entry struct{ code, product string }
	var got []entry
	for _, iss := range res.Issues {
		got = append(got, entry{iss.Code, iss.ProductID})
	}
	assert.Equal(t, []entry{
		{CodePriceStale, "P4"},
		{CodeLockNotFound, "P1"},
		{CodeNoInStock, "P2"},
		{CodeAllBanned, "P3"},
	}, got)
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, "P4", res.Decisions[0].ProductID)
}

func TestOptimize_LowestWhenEngineOff(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "10.00"),
		offer("b1", "P1", "themart", "9.00"),
	}
	rules := []model.PolicyRule{
		{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "themart"},
		{Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "alios", MaxPremiumPct: 50},
	}
	res := Optimize(offers, rules, engineOff(), now)

	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "b1", d.ChosenOfferID)
	assert.Equal(t, model.AppliedLowest, d.RuleApplied)
	assert.Empty(t, d.PolicyHits)
	assert.True(t, d.SavingsVsLowest.IsZero())
	assert.Equal(t, now, d.DecisionTS)
}

func TestOptimize_Lock(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "12.00"),
		offer("a2", "P1", "alios", "11.00"),
		offer("b1", "P1", "themart", "9.00"),
	}

	tests := []struct {
		name    string
		rule    model.PolicyRule
		opts    Options
		chosen  string
		blocked bool
		applied model.RuleApplied
	}{
		{
			name:    "lock picks lowest of locked supplier",
			rule:    model.PolicyRule{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios"},
			opts:    engineOn(),
			chosen:  "a2",
			applied: model.AppliedLock,
		},
		{
			name:    "lock applies with engine off",
			rule:    model.PolicyRule{Rule: model.RuleLock, ProductID: "P1", Supplier: "ALIOS"},
			opts:    engineOff(),
			chosen:  "a2",
			applied: model.AppliedLock,
		},
		{
			name:    "lock narrows to sku",
			rule:    model.PolicyRule{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios", SupplierSKU: "SKU-a1"},
			opts:    engineOn(),
			chosen:  "a1",
			applied: model.AppliedLock,
		},
		{
			name:    "lock supplier_id alias",
			rule:    model.PolicyRule{Rule: "lock", ProductID: "P1", SupplierID: "alios"},
			opts:    engineOn(),
			chosen:  "a2",
			applied: model.AppliedLock,
		},
		{
			name:    "lock target missing blocks",
			rule:    model.PolicyRule{Rule: model.RuleLock, ProductID: "P1", Supplier: "kritikos"},
			opts:    engineOn(),
			blocked: true,
		},
		{
			name:    "lock selector mismatch falls through",
			rule:    model.PolicyRule{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios", Selectors: model.Selectors{ServiceType: model.StringList{"DEL"}}},
			opts:    engineOff(),
			chosen:  "b1",
			applied: model.AppliedLowest,
		},
		{
			name:    "lock tier selector matches case-insensitively",
			rule:    model.PolicyRule{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios", Selectors: model.Selectors{Tier: model.StringList{"STANDARD"}}},
			opts:    engineOn(),
			chosen:  "a2",
			applied: model.AppliedLock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Optimize(offers, []model.PolicyRule{tt.rule}, tt.opts, now)
			d, ok := decisionFor(res, "P1")
			if tt.blocked {
				assert.False(t, ok)
				require.Len(t, res.Issues.ByCode(CodeLockNotFound), 1)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.chosen, d.ChosenOfferID)
			assert.Equal(t, tt.applied, d.RuleApplied)
			if tt.applied == model.AppliedLock {
				assert.True(t, d.HasReason(model.ReasonLockEnforced))
				require.NotNil(t, d.OverrideRef)
				require.Len(t, d.PolicyHits, 1)
				assert.Equal(t, model.RuleLock, d.PolicyHits[0].Rule)
				assert.True(t, d.SavingsVsLowest.IsNegative())
			}
		})
	}
}

func TestOptimize_LockStopsBanAndPrefer(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "12.00"),
		offer("b1", "P1", "themart", "9.00"),
	}
	rules := []model.PolicyRule{
		{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "alios"},
		{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios"},
	}
	res := Optimize(offers, rules, engineOn(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "a1", d.ChosenOfferID)
	assert.False(t, d.HasReason(model.ReasonBanFiltered))
}

func TestOptimize_LastLockWins(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "12.00"),
		offer("b1", "P1", "themart", "13.00"),
		offer("c1", "P1", "kritikos", "9.00"),
	}
	rules := []model.PolicyRule{
		{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios"},
		{Rule: model.RuleLock, ProductID: "P1", Supplier: "themart"},
	}
	res := Optimize(offers, rules, engineOff(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "b1", d.ChosenOfferID)
}

func TestOptimize_NonMatchingLastLockHidesEarlier(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "12.00"),
		offer("c1", "P1", "kritikos", "9.00"),
	}
	rules := []model.PolicyRule{
		{Rule: model.RuleLock, ProductID: "P1", Supplier: "alios"},
		{
			Rule: model.RuleLock, ProductID: "P1", Supplier: "alios",
			Selectors: model.Selectors{ServiceType: model.StringList{"DEL"}},
		},
	}
	res := Optimize(offers, rules, engineOn(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "c1", d.ChosenOfferID)
	assert.Equal(t, model.AppliedLowest, d.RuleApplied)
	assert.Empty(t, d.PolicyHits)
}

func TestOptimize_Ban(t *testing.T) {
	t.Parallel()

	dairy := func(o model.Offer) model.Offer {
		o.Category = "dairy"
		return o
	}
	offers := []model.Offer{
		dairy(offer("a1", "P1", "alios", "8.00")),
		dairy(offer("b1", "P1", "themart", "9.00")),
		dairy(offer("c1", "P1", "kritikos", "9.50")),
	}

	tests := []struct {
		name    string
		rules   []model.PolicyRule
		chosen  string
		applied model.RuleApplied
		hits    int
	}{
		{
			name:    "category scope",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeCategory, Match: "Dairy", Supplier: "alios"}},
			chosen:  "b1",
			applied: model.AppliedBanFilteredLowest,
			hits:    1,
		},
		{
			name:    "category scope other supplier untouched",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeCategory, Match: "produce", Supplier: "alios"}},
			chosen:  "a1",
			applied: model.AppliedLowest,
		},
		{
			name:    "product scope",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeProduct, Match: "P1", SupplierID: "alios"}},
			chosen:  "b1",
			applied: model.AppliedBanFilteredLowest,
			hits:    1,
		},
		{
			name: "supplier scope stacks",
			rules: []model.PolicyRule{
				{Rule: model.RuleBan, Scope: "SUPPLIER_ID", Match: "alios"},
				{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "themart"},
			},
			chosen:  "c1",
			applied: model.AppliedBanFilteredLowest,
			hits:    2,
		},
		{
			name:    "supplier scope falls back to rule supplier",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeSupplier, Supplier: "alios"}},
			chosen:  "b1",
			applied: model.AppliedBanFilteredLowest,
			hits:    1,
		},
		{
			name:    "ban of a pricier offer keeps lowest",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "themart"}},
			chosen:  "a1",
			applied: model.AppliedLowest,
			hits:    1,
		},
		{
			name:    "selector mismatch skips ban",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "alios", Selectors: model.Selectors{Tier: model.StringList{"premium"}}}},
			chosen:  "a1",
			applied: model.AppliedLowest,
		},
		{
			name:    "ban removing nothing records no hit",
			rules:   []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "nobody"}},
			chosen:  "a1",
			applied: model.AppliedLowest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Optimize(offers, tt.rules, engineOn(), now)
			d, ok := decisionFor(res, "P1")
			require.True(t, ok)
			assert.Equal(t, tt.chosen, d.ChosenOfferID)
			assert.Equal(t, tt.applied, d.RuleApplied)
			assert.Len(t, d.PolicyHits, tt.hits)
			assert.Equal(t, tt.hits > 0, d.HasReason(model.ReasonBanFiltered))
			assert.Len(t, d.Candidates, 3-tt.hits, "banned offers leave the candidate view")
		})
	}
}

func TestOptimize_BanOfPricierOfferIsNoChange(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "8.00"),
		offer("b1", "P1", "themart", "9.00"),
	}
	rules := []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "themart"}}

	on := Optimize(offers, rules, engineOn(), now)
	off := Optimize(offers, rules, engineOff(), now)

	d, ok := decisionFor(on, "P1")
	require.True(t, ok)
	assert.Equal(t, "a1", d.ChosenOfferID)
	assert.Equal(t, model.AppliedLowest, d.RuleApplied)
	assert.True(t, d.HasReason(model.ReasonBanFiltered))

	report := Diff(on.Decisions, off.Decisions, offers)
	assert.Equal(t, 1, report.Total)
	assert.Zero(t, report.Changed)
}

func TestOptimize_AllBanned(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{offer("a1", "P1", "alios", "8.00")}
	rules := []model.PolicyRule{{Rule: model.RuleBan, Scope: model.ScopeSupplier, Match: "alios"}}
	res := Optimize(offers, rules, engineOn(), now)

	assert.Empty(t, res.Decisions)
	require.Len(t, res.Issues.ByCode(CodeAllBanned), 1)
	assert.True(t, res.Issues.HasBlock())
}

func TestOptimize_StagedRollout(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "8.00"),
		offer("b1", "P1", "themart", "9.00"),
	}
	categoryBan := model.PolicyRule{Rule: model.RuleBan, Scope: model.ScopeCategory, Match: "produce", Supplier: "alios"}
	productBan := model.PolicyRule{Rule: model.RuleBan, Scope: model.ScopeProduct, Match: "P1", Supplier: "alios"}

	staged := engineOn()
	staged.Mode.StagedRolloutEnabled = true
	staged.Mode.RolloutCategories = []string{"dairy"}

	res := Optimize(offers, []model.PolicyRule{categoryBan}, staged, now)
	d, _ := decisionFor(res, "P1")
	assert.Equal(t, "a1", d.ChosenOfferID, "category rule gated when category not in rollout")

	res = Optimize(offers, []model.PolicyRule{productBan}, staged, now)
	d, _ = decisionFor(res, "P1")
	assert.Equal(t, "b1", d.ChosenOfferID, "product rule never gated")

	staged.Mode.RolloutCategories = []string{" Produce "}
	res = Optimize(offers, []model.PolicyRule{categoryBan}, staged, now)
	d, _ = decisionFor(res, "P1")
	assert.Equal(t, "b1", d.ChosenOfferID)
}

func TestOptimize_PreferWithinPremium(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "A", "10.00"),
		offer("b1", "P1", "B", "9.00"),
	}
	prefer := model.PolicyRule{Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "A", MaxPremiumPct: 15}

	res := Optimize(offers, []model.PolicyRule{prefer}, engineOn(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "a1", d.ChosenOfferID)
	assert.Equal(t, "A", d.SelectedSupplier)
	assert.Equal(t, model.AppliedPrefer, d.RuleApplied)
	assert.True(t, d.HasReason(model.ReasonPreferApplied))
	assert.Equal(t, "b1", d.LowestGlobalOfferID)
	assert.True(t, d.SavingsVsLowest.Equal(decimal.NewFromInt(-1)), d.SavingsVsLowest.String())
	require.NotNil(t, d.OverrideRef)
	assert.Equal(t, model.RulePrefer, d.OverrideRef.Rule)
	require.Len(t, d.Alternatives, 1)
	assert.Equal(t, "b1", d.Alternatives[0].OfferID)
	require.NotNil(t, d.Alternatives[0].DiffPct)
	assert.InDelta(t, -10.0, *d.Alternatives[0].DiffPct, 1e-9)
}

func TestOptimize_PreferOverPremium(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "A", "10.00"),
		offer("b1", "P1", "B", "9.00"),
	}
	prefer := model.PolicyRule{Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "A", MaxPremiumPct: 10}

	res := Optimize(offers, []model.PolicyRule{prefer}, engineOn(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "b1", d.ChosenOfferID)
	assert.Equal(t, model.AppliedLowest, d.RuleApplied)
	assert.True(t, d.SavingsVsLowest.IsZero())
}

func TestOptimize_PreferFirstMatchWins(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "A", "9.45"),
		offer("b1", "P1", "B", "9.00"),
		offer("c1", "P1", "C", "10.26"),
	}
	rules := []model.PolicyRule{
		{ID: "skip", Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "nobody", MaxPremiumPct: 99},
		{ID: "first", Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "C", MaxPremiumPct: 15},
		{ID: "cheaper", Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "A", MaxPremiumPct: 15},
	}

	res := Optimize(offers, rules, engineOn(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "c1", d.ChosenOfferID)
	require.NotNil(t, d.OverrideRef)
	assert.Equal(t, "first", d.OverrideRef.ID)
}

func TestOptimize_PreferCategoryScope(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "10.00"),
		offer("b1", "P1", "themart", "9.00"),
	}
	prefer := model.PolicyRule{Rule: model.RulePrefer, Scope: model.ScopeCategory, Match: "PRODUCE", Supplier: "alios", MaxPremiumPct: 12}

	res := Optimize(offers, []model.PolicyRule{prefer}, engineOn(), now)
	d, _ := decisionFor(res, "P1")
	assert.Equal(t, "a1", d.ChosenOfferID)

	staged := engineOn()
	staged.Mode.StagedRolloutEnabled = true
	res = Optimize(offers, []model.PolicyRule{prefer}, staged, now)
	d, _ = decisionFor(res, "P1")
	assert.Equal(t, "b1", d.ChosenOfferID, "empty rollout allowlist gates category prefer")
}

func TestOptimize_UnknownCategorySkipsPrefer(t *testing.T) {
	t.Parallel()

	for _, category := range []string{"", "unknown", "None", "null"} {
		a := offer("a1", "P1", "A", "10.00")
		a.Category = category
		b := offer("b1", "P1", "B", "9.00")
		b.Category = category
		prefer := model.PolicyRule{Rule: model.RulePrefer, Scope: model.ScopeSupplier, Match: "A", MaxPremiumPct: 50}

		res := Optimize([]model.Offer{a, b}, []model.PolicyRule{prefer}, engineOn(), now)
		d, ok := decisionFor(res, "P1")
		require.True(t, ok, category)
		assert.Equal(t, "b1", d.ChosenOfferID, category)
		assert.True(t, d.HasReason(model.ReasonCategoryUnknown), category)
		assert.False(t, d.HasReason(model.ReasonPreferApplied), category)
	}
}

func TestOptimize_DecisionRecord(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "s1", "3.00"),
		offer("a2", "P1", "s2", "0"),
		offer("a3", "P1", "s3", "2.00"),
		offer("a4", "P1", "s4", "4.00"),
		offer("a5", "P1", "s5", "5.00"),
		offer("a6", "P1", "s6", "6.00"),
	}
	offers[2].SupplierSKU = " "

	res := Optimize(offers, nil, engineOff(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)

	assert.Equal(t, "a3", d.ChosenOfferID, "zero price ranks last")
	assert.Equal(t, model.DecisionKeyDescPackExact, d.DecisionKey)
	assert.True(t, d.HasReason(model.ReasonNoSKUKey))
	assert.Len(t, d.Candidates, 6)
	assert.Len(t, d.CandidatesConsidered, model.MaxCandidatesConsidered)
	require.Len(t, d.Alternatives, 5)
	require.NotNil(t, d.Alternatives[0].DiffPct)
	assert.InDelta(t, 50.0, *d.Alternatives[0].DiffPct, 1e-9)
	require.NotNil(t, d.Alternatives[1].DiffPct)
	assert.InDelta(t, -100.0, *d.Alternatives[1].DiffPct, 1e-9)
	assert.Equal(t, "kg", d.Candidates[0].PriceUnit)
	assert.True(t, d.ChosenPrice.Equal(dec("2")))
	assert.True(t, d.LowestGlobalPrice.Equal(dec("2")))
}

func TestOptimize_ZeroChosenPriceHasNilDiff(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "s1", "0"),
		offer("a2", "P1", "s2", "0"),
	}
	res := Optimize(offers, nil, engineOff(), now)
	d, ok := decisionFor(res, "P1")
	require.True(t, ok)
	assert.Equal(t, "a1", d.ChosenOfferID)
	require.Len(t, d.Alternatives, 1)
	assert.Nil(t, d.Alternatives[0].DiffPct)
}

func TestOptimize_StaleOfferStillCandidate(t *testing.T) {
	t.Parallel()

	stale := offer("a1", "P1", "alios", "1.00")
	stale.CapturedAt = daysAgo(20)
	res := Optimize([]model.Offer{stale}, nil, engineOff(), now)

	require.Len(t, res.Decisions, 1)
	assert.Equal(t, 1, res.Issues.CountCode("STALE"))
	assert.False(t, res.Issues.HasBlock())
}

func TestOptimize_SavingsNeverPositiveForLowest(t *testing.T) {
	t.Parallel()

	offers := []model.Offer{
		offer("a1", "P1", "alios", "3.10"),
		offer("b1", "P1", "themart", "2.90"),
		offer("c1", "P2", "alios", "1.00"),
	}
	res := Optimize(offers, nil, engineOn(), now)
	for _, d := range res.Decisions {
		assert.True(t, d.SavingsVsLowest.IsZero(), d.ProductID)
		assert.True(t, d.LowestGlobalPrice.Sub(d.ChosenPrice).Round(6).Equal(d.SavingsVsLowest))
	}
}
