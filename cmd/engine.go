package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heraklist/evochia-ops/internal/config"
	"github.com/heraklist/evochia-ops/internal/costing"
	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/sourcing"
	"github.com/heraklist/evochia-ops/internal/validity"
)

// runOverrides carries per-run values that take precedence over the loaded
// config. Nil and empty fields keep the configured value.
type runOverrides struct {
	MaxAgeDays           *int     `json:"max_age_days,omitempty"`
	BlockAfterDays       *int     `json:"block_after_days,omitempty"`
	HourlyRate           *float64 `json:"hourly_rate,omitempty"`
	ServiceTag           string   `json:"service_tag,omitempty"`
	Phase                *int     `json:"phase,omitempty"`
	PolicyEngineEnabled  *bool    `json:"policy_engine_enabled,omitempty"`
	StagedRolloutEnabled *bool    `json:"staged_rollout_enabled,omitempty"`
	RolloutCategories    []string `json:"rollout_categories,omitempty"`
	ConfirmStale         bool     `json:"confirm_stale,omitempty"`
	Now                  string   `json:"now,omitempty"`
}

// gateFor returns the validity gate for c with overrides applied.
func gateFor(c *config.Config, o runOverrides) (validity.Gate, error) {
	g := validity.Gate{
		MaxAgeDays:     c.Validity.MaxAgeDays,
		BlockAfterDays: c.Validity.BlockAfterDays,
	}
	if o.MaxAgeDays != nil {
		g.MaxAgeDays = *o.MaxAgeDays
	}
	if o.BlockAfterDays != nil {
		g.BlockAfterDays = *o.BlockAfterDays
	}
	if err := g.Validate(); err != nil {
		return validity.Gate{}, err
	}
	return g, nil
}

// sourcingOptions builds optimizer options for c with overrides applied.
func sourcingOptions(c *config.Config, o runOverrides) (sourcing.Options, error) {
	gate, err := gateFor(c, o)
	if err != nil {
		return sourcing.Options{}, err
	}

	mode := sourcing.PolicyMode{
		PolicyEngineEnabled:  c.Sourcing.PolicyEngineEnabled,
		StagedRolloutEnabled: c.Sourcing.StagedRolloutEnabled,
		RolloutCategories:    c.Sourcing.RolloutCategories,
	}
	if o.PolicyEngineEnabled != nil {
		mode.PolicyEngineEnabled = *o.PolicyEngineEnabled
	}
	if o.Phase != nil {
		mode.PolicyEngineEnabled = sourcing.ModeFromPhase(*o.Phase, mode.PolicyEngineEnabled).PolicyEngineEnabled
	}
	if o.StagedRolloutEnabled != nil {
		mode.StagedRolloutEnabled = *o.StagedRolloutEnabled
	}
	if len(o.RolloutCategories) > 0 {
		mode.RolloutCategories = o.RolloutCategories
	}

	tag := c.Sourcing.ServiceTag
	if o.ServiceTag != "" {
		tag = o.ServiceTag
	}
	return sourcing.Options{Gate: gate, Mode: mode, ServiceTag: tag}, nil
}

// runClock resolves the evaluation time of a run. An empty value means now.
func runClock(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	t, ok := validity.ParseTimestamp(value)
	if !ok {
		return time.Time{}, eris.Errorf("invalid --now timestamp: %q", value)
	}
	return t, nil
}

// compareResult holds both optimizer passes and their diff.
type compareResult struct {
	On     sourcing.Result     `json:"on"`
	Off    sourcing.Result     `json:"off"`
	Report sourcing.DiffReport `json:"report"`
}

// compareModes runs the optimizer with the policy engine on and off
// concurrently and diffs the decisions.
func compareModes(ctx context.Context, offers []model.Offer, rules []model.PolicyRule, opts sourcing.Options, now time.Time) (*compareResult, error) {
	onOpts, offOpts := opts, opts
	onOpts.Mode.PolicyEngineEnabled = true
	offOpts.Mode.PolicyEngineEnabled = false

	var res compareResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return eris.Wrap(err, "compare: engine on")
		}
		res.On = sourcing.Optimize(offers, rules, onOpts, now)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return eris.Wrap(err, "compare: engine off")
		}
		res.Off = sourcing.Optimize(offers, rules, offOpts, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := sourcing.ValidateDecisions(res.Off.Decisions, false); err != nil {
		return nil, eris.Wrap(err, "compare: engine-off decisions")
	}
	res.Report = sourcing.Diff(res.On.Decisions, res.Off.Decisions, offers)

	zap.L().Info("policy comparison complete",
		zap.Int("total", res.Report.Total),
		zap.Int("changed", res.Report.Changed),
	)
	return &res, nil
}

// newCalculator builds the recipe cost calculator for c with overrides applied.
func newCalculator(c *config.Config, o runOverrides) (*costing.Calculator, error) {
	gate, err := gateFor(c, o)
	if err != nil {
		return nil, err
	}
	rate := c.Costing.HourlyRate
	if o.HourlyRate != nil {
		rate = *o.HourlyRate
	}
	return costing.NewCalculator(gate, rate, c.Costing.Currency), nil
}

// costRequest builds the per-run costing inputs.
func costRequest(offers []model.Offer, decisions []model.Decision, confirmStale bool, now time.Time) costing.Request {
	return costing.Request{
		Decisions:    sourcing.NewDecisionSet(decisions),
		Offers:       model.OffersByID(offers),
		ConfirmStale: confirmStale,
		Now:          now,
	}
}

// costSummary is the digest written next to a single-recipe breakdown.
type costSummary struct {
	RecipeID   string          `json:"recipe_id"`
	Status     model.Status    `json:"status"`
	Lines      int             `json:"lines"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	PerPortion decimal.Decimal `json:"per_portion"`
	Issues     int             `json:"issues"`
	Blocks     int             `json:"blocks"`
}

func summarizeCost(cb model.CostBreakdown, issues model.Issues) costSummary {
	s := costSummary{
		RecipeID:   cb.RecipeID,
		Status:     cb.Status,
		Lines:      len(cb.Lines),
		TotalCost:  cb.TotalCost,
		PerPortion: cb.PerPortion,
		Issues:     len(issues),
	}
	for _, i := range issues {
		if i.IsBlock() {
			s.Blocks++
		}
	}
	return s
}

// runStatusFor maps a blocked outcome to the run history status.
func runStatusFor(blocked bool) model.RunStatus {
	if blocked {
		return model.RunStatusBlocked
	}
	return model.RunStatusComplete
}

func nonNilIssues(is model.Issues) model.Issues {
	if is == nil {
		return model.Issues{}
	}
	return is
}
