package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nvarley/signalrunner/internal/app"
	"github.com/nvarley/signalrunner/internal/broker"
	"github.com/nvarley/signalrunner/internal/chat"
	"github.com/nvarley/signalrunner/internal/config"
	"github.com/nvarley/signalrunner/internal/decision"
	"github.com/nvarley/signalrunner/internal/instrument"
	"github.com/nvarley/signalrunner/internal/journal"
	"github.com/nvarley/signalrunner/internal/ledger"
	"github.com/nvarley/signalrunner/internal/notify"
	"github.com/nvarley/signalrunner/internal/observ"
	"github.com/nvarley/signalrunner/internal/risk"
	sig "github.com/nvarley/signalrunner/internal/signal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the alert channel and trade until interrupted",
	Long: `Run the full pipeline: poll the chat channel, parse each alert into a
trade intent, size and submit orders through the broker bridge, and
supervise open positions with the configured exit mode.

Example:
  trader run --config config/trader.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "config/trader.yaml", "path to config file (YAML)")
}

func runRun(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var jrnl journal.Journal
	if cfg.Journal.Backend == "csv" {
		jrnl, err = journal.NewCSV(cfg.Journal.Path)
	} else {
		jrnl, err = journal.NewSQLite(cfg.Journal.Path)
	}
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	var gw broker.Gateway
	if cfg.Broker.Paper {
		gw = broker.NewPaper(time.Now)
	} else {
		gw = broker.NewClient(broker.ClientConfig{
			BaseURL:            cfg.Broker.BaseURL,
			TimeoutMs:          cfg.Broker.TimeoutMs,
			RateLimitPerSecond: cfg.Broker.RateLimitPerSecond,
		})
	}

	var sink notify.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled {
		sink = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, true)
	}

	book := ledger.New()

	var trails *risk.Manager
	if cfg.Exits.Mode == config.ExitAdaptive {
		trails = risk.NewManager(gw, book, jrnl, sink, risk.Config{
			BreakevenTriggerPct: cfg.Exits.BreakevenTriggerPct,
			TrailDrawdownPct:    cfg.Exits.TrailDrawdownPct,
			Timeout:             time.Duration(cfg.Exits.TimeoutMinutes) * time.Minute,
			TickInterval:        time.Duration(cfg.Exits.TickIntervalMs) * time.Millisecond,
		}, time.Now)
	}

	kw := sig.NewKeywords(sig.Keywords{
		Buy: cfg.Signals.Buy, Add: cfg.Signals.Add,
		Sell: cfg.Signals.Sell, Trim: cfg.Signals.Trim,
		Small: cfg.Signals.Small, Hedge: cfg.Signals.Hedge,
		Reject: cfg.Signals.Reject,
	})
	parser := sig.NewNormalizer(kw, cfg.Signals.DefaultBuy, time.Now)
	resolver := instrument.NewResolver(cfg.Instruments.DailyExpiry, cfg.Instruments.FridayHoliday, time.Now)

	engine := decision.NewEngine(parser, resolver, gw, book, trails, jrnl, sink, decision.Config{
		ExitMode:           cfg.Exits.Mode,
		PerSignalUSD:       cfg.Sizing.PerSignalUSD,
		PerAddUSD:          cfg.Sizing.PerAddUSD,
		TrimPercent:        cfg.Sizing.TrimPercent,
		MinPrice:           cfg.Sizing.MinPrice,
		MaxPrice:           cfg.Sizing.MaxPrice,
		ContractMultiplier: cfg.Broker.ContractMultiplier,
		SinglePosition:     cfg.Engine.SinglePosition,
		TakeProfitPct:      cfg.Exits.TakeProfitPct,
		StopLossPct:        cfg.Exits.StopLossPct,
		NativeTrailPct:     cfg.Exits.NativeTrailPct,
		Restricted:         cfg.Instruments.Restricted,
	}, time.Now)

	poller := chat.NewClient(chat.ClientConfig{
		BaseURL:   cfg.Chat.BaseURL,
		AuthToken: cfg.Chat.AuthToken,
		ChannelID: cfg.Chat.ChannelID,
	})
	cursor := chat.OpenCursor(cfg.Chat.CursorPath)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observ.MetricsHandler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				observ.Error("metrics_server_failed", map[string]any{"error": err.Error()})
			}
		}()
		defer srv.Close()
	}

	runner := app.NewRunner(poller, cursor, engine, trails, app.Config{
		PollInterval: time.Duration(cfg.Chat.PollIntervalMs) * time.Millisecond,
		PollLimit:    cfg.Chat.BatchLimit,
		MaxAlertAge:  time.Duration(cfg.Chat.MaxAgeSeconds) * time.Second,
		CutoffHour:   cfg.Exits.CutoffHour,
		CutoffMinute: cfg.Exits.CutoffMinute,
	}, time.Now)

	runner.Run(ctx)
	return nil
}
