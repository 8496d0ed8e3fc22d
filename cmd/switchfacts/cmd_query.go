package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// queryCmd queries extracted and derived facts
var queryCmd = &cobra.Command{
	Use:   "query <atom>",
	Short: "Query facts with a single Mangle atom",
	Long: `Evaluates one atom against the stored facts and the schema's rules.
Variables bind per row, _ matches anything.

Examples:
  switchfacts query 'has_default(S)'
  switchfacts query 'duplicate_label_value(S, V)'
  switchfacts query 'case_shape(C, /pattern)'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Debug("querying", zap.String("atom", args[0]))
	result, err := rt.engine.Query(ctx, args[0])
	if err != nil {
		return err
	}

	rows := make([]string, 0, len(result.Bindings))
	for _, binding := range result.Bindings {
		rows = append(rows, formatBinding(binding))
	}
	sort.Strings(rows)

	out := cmd.OutOrStdout()
	for _, row := range rows {
		fmt.Fprintln(out, row)
	}
	fmt.Fprintf(out, "%d result(s)\n", len(rows))
	return nil
}

func formatBinding(binding map[string]interface{}) string {
	if len(binding) == 0 {
		return "true"
	}
	names := make([]string, 0, len(binding))
	for name := range binding {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v := binding[name]
		if s, ok := v.(string); ok {
			parts = append(parts, fmt.Sprintf("%s=%q", name, s))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", name, v))
	}
	return strings.Join(parts, " ")
}
