package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvarley/signalrunner/internal/config"
	"github.com/nvarley/signalrunner/internal/instrument"
	sig "github.com/nvarley/signalrunner/internal/signal"
)

var checkCmd = &cobra.Command{
	Use:   "check [alert text]",
	Short: "Dry-run parse an alert without submitting anything",
	Long: `Parse alert text through the same normalizer the run loop uses and
print the extracted intent and resolved contract. Nothing is submitted.

Example:
  trader check "BTO SPY 450c 0DTE"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var checkConfigPath string

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkConfigPath, "config", "f", "config/trader.yaml", "path to config file (YAML)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(checkConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	kw := sig.NewKeywords(sig.Keywords{
		Buy: cfg.Signals.Buy, Add: cfg.Signals.Add,
		Sell: cfg.Signals.Sell, Trim: cfg.Signals.Trim,
		Small: cfg.Signals.Small, Hedge: cfg.Signals.Hedge,
		Reject: cfg.Signals.Reject,
	})
	parser := sig.NewNormalizer(kw, cfg.Signals.DefaultBuy, time.Now)
	resolver := instrument.NewResolver(cfg.Instruments.DailyExpiry, cfg.Instruments.FridayHoliday, time.Now)

	text := strings.Join(args, " ")
	intent, ok := parser.Normalize(sig.RawAlert{ID: "check", Content: text})
	if !ok {
		fmt.Println("rejected: alert matches a reject keyword")
		return nil
	}

	fmt.Printf("underlying:  %s\n", intent.Underlying)
	fmt.Printf("strike:      %.2f\n", intent.Strike)
	fmt.Printf("right:       %s\n", intent.Right)
	fmt.Printf("instruction: %s\n", intent.Instruction)
	if intent.ExpMonth > 0 {
		fmt.Printf("expiration:  %d/%d (explicit)\n", intent.ExpMonth, intent.ExpDay)
	} else {
		fmt.Printf("expiration:  (default)\n")
	}

	if !intent.Usable() {
		fmt.Println("\nintent is incomplete; the run loop would skip this alert")
		return nil
	}

	inst := resolver.Resolve(intent.Underlying, intent.ExpMonth, intent.ExpDay, intent.Strike, intent.Right)
	fmt.Printf("\ncontract:    %s\n", inst)
	fmt.Printf("key:         %s\n", inst.Key())
	return nil
}
