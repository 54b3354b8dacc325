package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// backendsCmd lists the configured descriptors with live probe results, in
// the selector's priority order
var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List configured backends and probe their availability",
	Long: `List the configured backend descriptors in priority order and run each
one's availability probe, the same check the selector performs per request.

Examples:
  doc-structurer backends
  doc-structurer backends --backend embedded:native --backend subprocess:docconv`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := NewAppHandler()
		if err != nil {
			exitWith(cmd, err)
		}

		selector := app.dispatcher.Selector()
		fmt.Println("🗂  Configured Backends")
		fmt.Println("=======================")

		anyAvailable := false
		for i, desc := range selector.Descriptors() {
			strat, ok := selector.StrategyFor(desc.Kind)
			if !ok {
				fmt.Printf("  %d. %-32s ❌ no strategy for kind\n", i+1, desc.String())
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), desc.Timeout())
			probeErr := strat.Probe(ctx, desc)
			cancel()

			if probeErr != nil {
				fmt.Printf("  %d. %-32s ❌ %v\n", i+1, desc.String(), probeErr)
				continue
			}
			fmt.Printf("  %d. %-32s ✅ available (timeout %s)\n", i+1, desc.String(), desc.Timeout())
			anyAvailable = true
		}

		if !anyAvailable {
			fmt.Println("\n⚠️  No backend answered its probe; extract and info will fail")
		}
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
