package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExitMode selects exactly one position-exit discipline. The adaptive
// trailing state machine and broker-native exits are mutually exclusive
// by construction.
type ExitMode string

const (
	ExitAdaptive    ExitMode = "adaptive"     // in-process trailing state machine
	ExitBracket     ExitMode = "bracket"      // attached take-profit/stop-loss at entry
	ExitNativeTrail ExitMode = "native_trail" // broker-native trailing order at entry
	ExitNone        ExitMode = "none"
)

type Chat struct {
	BaseURL        string `yaml:"base_url"`
	AuthToken      string `yaml:"auth_token"` // CHAT_AUTH_TOKEN env overrides
	ChannelID      string `yaml:"channel_id"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	BatchLimit     int    `yaml:"batch_limit"`
	MaxAgeSeconds  int    `yaml:"max_age_seconds"`
	CursorPath     string `yaml:"cursor_path"`
}

type Broker struct {
	BaseURL            string  `yaml:"base_url"`
	TimeoutMs          int     `yaml:"timeout_ms"`
	RateLimitPerSecond int     `yaml:"rate_limit_per_second"`
	ContractMultiplier float64 `yaml:"contract_multiplier"`
	Paper              bool    `yaml:"paper"` // in-memory gateway, no bridge needed
}

// Signals holds the keyword vocabulary the normalizer matches against.
type Signals struct {
	Buy        []string `yaml:"buy"`
	Add        []string `yaml:"add"`
	Sell       []string `yaml:"sell"`
	Trim       []string `yaml:"trim"`
	Small      []string `yaml:"small"`
	Hedge      []string `yaml:"hedge"`
	Reject     []string `yaml:"reject"`
	DefaultBuy bool     `yaml:"default_buy"` // treat keyword-less alerts as BUY
}

type Instruments struct {
	DailyExpiry   []string `yaml:"daily_expiry"` // same-day expiring underlyings
	Restricted    []string `yaml:"restricted"`
	FridayHoliday bool     `yaml:"friday_holiday"` // next Friday is a market holiday
}

type Sizing struct {
	PerSignalUSD float64 `yaml:"per_signal_usd"`
	PerAddUSD    float64 `yaml:"per_add_usd"`
	TrimPercent  float64 `yaml:"trim_percent"`
	MinPrice     float64 `yaml:"min_price"`
	MaxPrice     float64 `yaml:"max_price"`
}

type Exits struct {
	Mode                ExitMode `yaml:"mode"`
	BreakevenTriggerPct float64  `yaml:"breakeven_trigger_pct"`
	TrailDrawdownPct    float64  `yaml:"trail_drawdown_pct"`
	TimeoutMinutes      int      `yaml:"timeout_minutes"`
	TickIntervalMs      int      `yaml:"tick_interval_ms"`
	TakeProfitPct       float64  `yaml:"take_profit_pct"` // bracket mode
	StopLossPct         float64  `yaml:"stop_loss_pct"`   // bracket mode
	NativeTrailPct      float64  `yaml:"native_trail_pct"`
	CutoffHour          int      `yaml:"cutoff_hour"`
	CutoffMinute        int      `yaml:"cutoff_minute"`
}

type Engine struct {
	SinglePosition bool `yaml:"single_position"` // one open broker position at a time
}

type Journal struct {
	Backend string `yaml:"backend"` // sqlite | csv
	Path    string `yaml:"path"`
}

type Telegram struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"` // TELEGRAM_BOT_TOKEN env overrides
	ChatID   string `yaml:"chat_id"`
}

type Root struct {
	Chat        Chat        `yaml:"chat"`
	Broker      Broker      `yaml:"broker"`
	Signals     Signals     `yaml:"signals"`
	Instruments Instruments `yaml:"instruments"`
	Sizing      Sizing      `yaml:"sizing"`
	Exits       Exits       `yaml:"exits"`
	Engine      Engine      `yaml:"engine"`
	Journal     Journal     `yaml:"journal"`
	Telegram    Telegram    `yaml:"telegram"`
	MetricsAddr string      `yaml:"metrics_addr"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Chat.PollIntervalMs == 0 {
		c.Chat.PollIntervalMs = 1000
	}
	if c.Chat.BatchLimit == 0 {
		c.Chat.BatchLimit = 50
	}
	if c.Chat.MaxAgeSeconds == 0 {
		c.Chat.MaxAgeSeconds = 60
	}
	if c.Chat.CursorPath == "" {
		c.Chat.CursorPath = "data/last_log_id.json"
	}
	if c.Broker.TimeoutMs == 0 {
		c.Broker.TimeoutMs = 5000
	}
	if c.Broker.RateLimitPerSecond == 0 {
		c.Broker.RateLimitPerSecond = 10
	}
	if c.Broker.ContractMultiplier == 0 {
		c.Broker.ContractMultiplier = 100
	}
	if c.Sizing.PerSignalUSD == 0 {
		c.Sizing.PerSignalUSD = 1000
	}
	if c.Sizing.PerAddUSD == 0 {
		c.Sizing.PerAddUSD = c.Sizing.PerSignalUSD
	}
	if c.Sizing.TrimPercent == 0 {
		c.Sizing.TrimPercent = 50
	}
	if c.Sizing.MinPrice == 0 {
		c.Sizing.MinPrice = 0.2
	}
	if c.Sizing.MaxPrice == 0 {
		c.Sizing.MaxPrice = 10.0
	}
	if c.Exits.Mode == "" {
		c.Exits.Mode = ExitAdaptive
	}
	if c.Exits.BreakevenTriggerPct == 0 {
		c.Exits.BreakevenTriggerPct = 5
	}
	if c.Exits.TrailDrawdownPct == 0 {
		c.Exits.TrailDrawdownPct = 20
	}
	if c.Exits.TimeoutMinutes == 0 {
		c.Exits.TimeoutMinutes = 30
	}
	if c.Exits.TickIntervalMs == 0 {
		c.Exits.TickIntervalMs = 5000
	}
	if c.Exits.TakeProfitPct == 0 {
		c.Exits.TakeProfitPct = 15
	}
	if c.Exits.StopLossPct == 0 {
		c.Exits.StopLossPct = 20
	}
	if c.Exits.NativeTrailPct == 0 {
		c.Exits.NativeTrailPct = 20
	}
	if c.Exits.CutoffHour == 0 {
		c.Exits.CutoffHour = 16
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = "csv"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/trade_log.csv"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9109"
	}
	if len(c.Signals.Buy) == 0 && len(c.Signals.Sell) == 0 {
		d := DefaultSignals()
		d.Reject = c.Signals.Reject
		d.DefaultBuy = c.Signals.DefaultBuy
		c.Signals = d
	}
	c.Signals.Normalize()

	// Secrets come from the environment when present.
	if v := os.Getenv("CHAT_AUTH_TOKEN"); v != "" {
		c.Chat.AuthToken = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}

	return c, c.validate()
}

func (c Root) validate() error {
	switch c.Exits.Mode {
	case ExitAdaptive, ExitBracket, ExitNativeTrail, ExitNone:
	default:
		return fmt.Errorf("config: unknown exits.mode %q", c.Exits.Mode)
	}
	if c.Journal.Backend != "sqlite" && c.Journal.Backend != "csv" {
		return fmt.Errorf("config: unknown journal.backend %q", c.Journal.Backend)
	}
	if c.Sizing.MinPrice > c.Sizing.MaxPrice {
		return fmt.Errorf("config: min_price %.2f above max_price %.2f",
			c.Sizing.MinPrice, c.Sizing.MaxPrice)
	}
	return nil
}

// DefaultSignals mirrors the alert vocabulary the engine was tuned
// against; used when the signals block is absent from the file.
func DefaultSignals() Signals {
	return Signals{
		Buy:   []string{"bto", "buy", "entry", "in", "open", "enter", "bot", "entries", "here", "opening"},
		Add:   []string{"add", "adding"},
		Sell:  []string{"stc", "sell", "sold", "out", "exit", "close", "cut", "stopped", "loss", "profits"},
		Trim:  []string{"trim", "scale", "lfg", "holding", "take", "update", "gains", "now", "reduce", "secure", "safety"},
		Small: []string{"small", "lotto"},
		Hedge: []string{"hedge"},
	}
}

// Normalize lowercases every keyword set once at startup so the
// normalizer can compare case-insensitively without re-allocating.
func (s *Signals) Normalize() {
	lower := func(xs []string) {
		for i := range xs {
			xs[i] = strings.ToLower(xs[i])
		}
	}
	lower(s.Buy)
	lower(s.Add)
	lower(s.Sell)
	lower(s.Trim)
	lower(s.Small)
	lower(s.Hedge)
	lower(s.Reject)
}
