package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "debatemesh",
		Short: "Scenario-driven multi-agent debate orchestrator",
		Long:  "Runs structured multi-agent debates over a scenario: round-robin turns, provider-backed reasoning, consensus evaluation and a live event stream.",
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "Log format (text or json)")

	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
