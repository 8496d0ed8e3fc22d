package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"switchfacts/internal/config"
	"switchfacts/internal/mangle"
)

// initCmd writes a default config
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .switchfacts/config.yaml",
	RunE:  runInit,
}

// statsCmd shows engine and store statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fact counts per predicate",
	RunE:  runStats,
}

// schemaCmd prints the embedded schema
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the Mangle schema the facts conform to",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), mangle.Schema())
		return err
	},
}

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	path := configPath
	if path == "" {
		path = defaultConfigPath(ws)
	}
	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "config already exists: %s\n", path)
		return nil
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	stats := rt.engine.GetStats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "files: %d\nextracted facts: %d\ntotal facts: %d\n", stats.Files, stats.ExtractedFacts, stats.TotalFacts)
	if rt.store != nil {
		stored, err := rt.store.CountFacts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "stored facts: %d (%s)\n", stored, rt.store.Path())
	}

	preds := make([]string, 0, len(stats.PredicateCounts))
	for p := range stats.PredicateCounts {
		preds = append(preds, p)
	}
	sort.Strings(preds)
	for _, p := range preds {
		if n := stats.PredicateCounts[p]; n > 0 {
			fmt.Fprintf(out, "  %-24s %d\n", p, n)
		}
	}

	if files := rt.engine.Files(); len(files) > 0 {
		fmt.Fprintln(out, "per file:")
		for _, f := range files {
			fmt.Fprintf(out, "  %-40s %d\n", f, len(rt.engine.FactsForFile(f)))
		}
	}
	return nil
}
