package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Turns chat trade alerts into broker orders",
	Long: `Trader polls a chat channel for option trade alerts, normalizes the
free-form text into trade intents, and submits sized orders through a
broker bridge.

It provides:
  - Heuristic alert parsing with a configurable signal vocabulary
  - Deterministic option contract resolution (daily and weekly expiries)
  - Price-gated fixed-dollar position sizing
  - An adaptive trailing-stop supervisor with breakeven arming
  - Trade journaling to SQLite or CSV`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
