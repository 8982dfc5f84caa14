package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/loader"
	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/output"
	"github.com/heraklist/evochia-ops/internal/sourcing"
)

var optimizeFlags runFlags

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Resolve one supplier offer per product",
	Long:  "Screens offers through the price validity gate, groups them by product and applies LOCK, BAN and PREFER policies. Writes decisions.json, issues.json and summary.json.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		o, err := optimizeFlags.resolve(cmd)
		if err != nil {
			return err
		}
		opts, err := sourcingOptions(cfg, o)
		if err != nil {
			return err
		}
		now, err := runClock(o.Now)
		if err != nil {
			return err
		}

		offers, err := loader.LoadOffers(ctx, optimizeFlags.offers)
		if err != nil {
			return err
		}
		rules, err := optimizeFlags.loadRules()
		if err != nil {
			return err
		}

		dir, err := optimizeFlags.runDir(model.RunKindOptimize)
		if err != nil {
			return err
		}

		st := openHistory(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}
		rec := startRun(ctx, st, model.RunKindOptimize, dir)

		res := sourcing.Optimize(offers, rules, opts, now)
		summary := sourcing.Summarize(res)

		if err := writeArtifacts(dir,
			artifact{output.DecisionsFile, res.Decisions},
			artifact{output.IssuesFile, res.Issues},
			artifact{output.SummaryFile, summary},
		); err != nil {
			rec.fail(ctx, err)
			return err
		}
		rec.complete(ctx, model.RunStatusComplete, summary)

		zap.L().Info("optimize complete",
			zap.String("run_id", rec.ID()),
			zap.String("dir", dir),
			zap.Int("decisions", summary.Decisions),
			zap.Int("issues", summary.Issues),
		)
		return printJSON(os.Stdout, map[string]any{
			"decisions":             summary.Decisions,
			"issues":                summary.Issues,
			"policy_engine_enabled": summary.PolicyEngineEnabled,
			"out_dir":               dir,
		})
	},
}

func init() {
	optimizeFlags.register(optimizeCmd, true)
	rootCmd.AddCommand(optimizeCmd)
}
