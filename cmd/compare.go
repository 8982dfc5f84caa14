package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/heraklist/evochia-ops/internal/loader"
	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/output"
)

var compareFlags runFlags

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare decisions with the policy engine on and off",
	Long:  "Runs the optimizer twice over the same inputs, once with BAN and PREFER rules enabled and once without, and writes a per-product diff report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		o, err := compareFlags.resolve(cmd)
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

		offers, err := loader.LoadOffers(ctx, compareFlags.offers)
		if err != nil {
			return err
		}
		rules, err := compareFlags.loadRules()
		if err != nil {
			return err
		}

		dir, err := compareFlags.runDir(model.RunKindCompare)
		if err != nil {
			return err
		}

		st := openHistory(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}
		rec := startRun(ctx, st, model.RunKindCompare, dir)

		res, err := compareModes(ctx, offers, rules, opts, now)
		if err != nil {
			rec.fail(ctx, err)
			return err
		}

		if err := writeArtifacts(dir,
			artifact{"decisions_on.json", res.On.Decisions},
			artifact{"decisions_off.json", res.Off.Decisions},
			artifact{output.DiffReportFile, res.Report},
		); err != nil {
			rec.fail(ctx, err)
			return err
		}
		rec.complete(ctx, model.RunStatusComplete, map[string]int{
			"total":   res.Report.Total,
			"changed": res.Report.Changed,
		})

		return printJSON(os.Stdout, map[string]any{
			"total":   res.Report.Total,
			"changed": res.Report.Changed,
			"out_dir": dir,
		})
	},
}

func init() {
	compareFlags.register(compareCmd, true)
	rootCmd.AddCommand(compareCmd)
}
