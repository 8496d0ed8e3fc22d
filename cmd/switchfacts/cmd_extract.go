package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	printFacts bool
	failFast   bool
	rebuild    bool
)

// extractCmd extracts switch facts from the workspace
var extractCmd = &cobra.Command{
	Use:   "extract [paths...]",
	Short: "Extract switch case facts from C# sources and syntax dumps",
	Long: `Walks the workspace (or the given files and directories), extracts every
switch statement and publishes its facts. Files whose content hash matches
the stored one are skipped; stored files that disappeared under the walked
roots are removed.

Examples:
  switchfacts extract
  switchfacts extract src/Parser --facts
  switchfacts extract --rebuild`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if rebuild {
		dropped, err := rt.engine.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reset: dropped %d file(s)\n", len(dropped))
	}

	// Evaluate once after the batch instead of after every file.
	rt.engine.ToggleAutoEval(false)
	summary, err := rt.extractor.Run(ctx, args...)
	if err != nil {
		return err
	}
	if err := rt.engine.RecomputeRules(); err != nil {
		return err
	}

	fmt.Fprintf(out, "files: %d  extracted: %d  unchanged: %d  removed: %d  failed: %d\n",
		summary.Files, summary.Extracted, summary.Unchanged, summary.Removed, len(summary.Failed))
	fmt.Fprintf(out, "facts: %d  faults: %d  (%v)\n", summary.Facts, summary.Faults, summary.Duration.Round(1e6))
	for _, f := range summary.Failed {
		fmt.Fprintf(out, "  FAILED %s: %v\n", f.Path, f.Err)
	}

	if printFacts {
		for _, file := range rt.extractor.Known() {
			facts := rt.engine.FactsForFile(file)
			lines := make([]string, 0, len(facts))
			for _, f := range facts {
				lines = append(lines, f.String())
			}
			sort.Strings(lines)
			fmt.Fprintf(out, "\n# %s\n", file)
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
		}
	}

	logger.Info("extraction finished",
		zap.Int("extracted", summary.Extracted),
		zap.Int("failed", len(summary.Failed)))
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed", len(summary.Failed))
	}
	return nil
}
