package main

import (
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/config"
	"github.com/heraklist/evochia-ops/internal/loader"
	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/output"
)

// runFlags are the input and threshold flags shared by the run commands.
type runFlags struct {
	offers         string
	policies       string
	overrides      string
	defaults       string
	outDir         string
	now            string
	serviceTag     string
	phase          int
	enableEngine   bool
	enableRollout  bool
	rolloutCats    []string
	maxAgeDays     int
	blockAfterDays int
}

func (f *runFlags) register(cmd *cobra.Command, withPolicy bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.offers, "offers", "", "canonical offers file (.json, .yaml, .csv, .xlsx)")
	fs.StringVar(&f.defaults, "defaults", "", "legacy defaults.json overlaid on the config")
	fs.StringVar(&f.outDir, "out-dir", "", "output directory (default: new run directory under runs.dir)")
	fs.StringVar(&f.now, "now", "", "evaluation time as RFC3339 (default: current time)")
	fs.IntVar(&f.maxAgeDays, "max-age-days", 0, "stale threshold in days (default from config)")
	fs.IntVar(&f.blockAfterDays, "block-after-days", 0, "block threshold in days (default from config)")
	_ = cmd.MarkFlagRequired("offers")

	if !withPolicy {
		return
	}
	fs.StringVar(&f.policies, "policies", "", "policies document ({\"policies\": [...]})")
	fs.StringVar(&f.overrides, "overrides", "", "legacy overrides document ({\"overrides\": [...]})")
	fs.StringVar(&f.serviceTag, "service-tag", "", "service type matched by policy selectors (default from config)")
	fs.IntVar(&f.phase, "phase", 1, "legacy rollout phase; 2 or higher enables the policy engine")
	fs.BoolVar(&f.enableEngine, "enable-policy-engine", false, "enable BAN and PREFER rules")
	fs.BoolVar(&f.enableRollout, "enable-staged-rollout", false, "restrict category rules to --rollout-categories")
	fs.StringSliceVar(&f.rolloutCats, "rollout-categories", nil, "categories allowed during staged rollout")
}

// resolve collects the flags the user set explicitly. It also overlays the
// legacy defaults file onto cfg.
func (f *runFlags) resolve(cmd *cobra.Command) (runOverrides, error) {
	var o runOverrides
	if f.defaults != "" {
		if err := config.ApplyDefaultsFile(cfg, f.defaults); err != nil {
			return o, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("max-age-days") {
		o.MaxAgeDays = &f.maxAgeDays
	}
	if fs.Changed("block-after-days") {
		o.BlockAfterDays = &f.blockAfterDays
	}
	if fs.Changed("phase") {
		o.Phase = &f.phase
	}
	if fs.Changed("enable-policy-engine") {
		o.PolicyEngineEnabled = &f.enableEngine
	}
	if fs.Changed("enable-staged-rollout") {
		o.StagedRolloutEnabled = &f.enableRollout
	}
	o.RolloutCategories = f.rolloutCats
	o.ServiceTag = f.serviceTag
	o.Now = f.now
	return o, nil
}

// loadRules reads the policies and legacy overrides documents. Policies take
// precedence when both are given.
func (f *runFlags) loadRules() ([]model.PolicyRule, error) {
	var overrides, policies []model.PolicyRule
	var err error
	if f.overrides != "" {
		if overrides, err = loader.LoadPolicies(f.overrides); err != nil {
			return nil, err
		}
	}
	if f.policies != "" {
		if policies, err = loader.LoadPolicies(f.policies); err != nil {
			return nil, err
		}
	}
	return loader.MergePolicies(overrides, policies), nil
}

// runDir returns the explicit output directory, creating it if needed, or a
// fresh run directory under runs.dir.
func (f *runFlags) runDir(kind model.RunKind) (string, error) {
	if f.outDir != "" {
		if err := output.EnsureDir(f.outDir); err != nil {
			return "", err
		}
		return f.outDir, nil
	}
	return output.CreateRunDir(cfg.Runs.Dir, string(kind), time.Now())
}

// artifact is one named document written into a run directory.
type artifact struct {
	name string
	v    any
}

func writeArtifacts(dir string, artifacts ...artifact) error {
	for _, a := range artifacts {
		if err := output.WriteJSON(filepath.Join(dir, a.name), a.v); err != nil {
			return err
		}
	}
	zap.L().Info("artifacts written", zap.String("dir", dir), zap.Int("files", len(artifacts)))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(v), "print summary")
}
