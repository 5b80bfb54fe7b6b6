package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Series binds one recurring contract template to its reference asset
// symbol on the price feed.
type Series struct {
	Ticker string `yaml:"ticker"`           // e.g. KXBTC15M
	Symbol string `yaml:"symbol"`           // e.g. BTCUSDT
	Label  string `yaml:"label,omitempty"`  // e.g. BTC, for log prefixes
}

type Config struct {
	Mode        string   `yaml:"mode"`         // PAPER or LIVE
	ConfirmLive bool     `yaml:"confirm_live"` // required acknowledgement for LIVE
	Series      []Series `yaml:"series"`

	BrainDir    string `yaml:"brain_dir"`    // holds prompt.md, ledger.md, stats.md
	ArchivePath string `yaml:"archive_path"` // sqlite trade archive; empty disables

	Timers struct {
		EntrySeconds         int `yaml:"entry_seconds"`
		PositionCheckSeconds int `yaml:"position_check_seconds"`
	} `yaml:"timers"`

	Risk struct {
		MaxShares            int     `yaml:"max_shares"`
		MaxDailyLossCents    int64   `yaml:"max_daily_loss_cents"`
		MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
		MinBalanceCents      int64   `yaml:"min_balance_cents"`
		MinMinutesToExpiry   float64 `yaml:"min_minutes_to_expiry"`
	} `yaml:"risk"`

	Exit struct {
		TakeProfitCents int `yaml:"take_profit_cents"` // per share
		StopLossCents   int `yaml:"stop_loss_cents"`   // per share
	} `yaml:"exit"`

	Exchange struct {
		BaseURL        string `yaml:"base_url"`
		WSURL          string `yaml:"ws_url"`
		KeyID          string `yaml:"-"` // from KALSHI_API_KEY_ID
		PrivateKeyPEM  string `yaml:"-"` // from KALSHI_PRIVATE_KEY_PATH
		RequestsPerSec int    `yaml:"requests_per_sec"`
	} `yaml:"exchange"`

	PriceFeed struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
	} `yaml:"price_feed"`

	LLM struct {
		Provider    string  `yaml:"provider"` // OPENROUTER or NOOP
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		APIKey      string  `yaml:"-"` // from OPENROUTER_API_KEY
	} `yaml:"llm"`
}

func (c *Config) Paper() bool { return c.Mode == "PAPER" }

func (c *Config) Validate() error {
	if c.Mode != "PAPER" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'PAPER' or 'LIVE'", c.Mode)
	}
	if c.Mode == "LIVE" && !c.ConfirmLive {
		return errors.New("mode is LIVE but confirm_live is not set, real money at risk, acknowledge explicitly")
	}
	if len(c.Series) == 0 {
		return errors.New("series cannot be empty")
	}
	for i, s := range c.Series {
		if s.Ticker == "" {
			return fmt.Errorf("series[%d]: ticker is required", i)
		}
		if s.Symbol == "" {
			return fmt.Errorf("series[%d] (%s): symbol is required", i, s.Ticker)
		}
	}
	if c.Risk.MaxShares <= 0 {
		return fmt.Errorf("risk.max_shares must be positive, got %d", c.Risk.MaxShares)
	}
	if c.Exit.TakeProfitCents <= 0 || c.Exit.StopLossCents <= 0 {
		return errors.New("exit.take_profit_cents and exit.stop_loss_cents must be positive")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = "PAPER"
	}
	if c.BrainDir == "" {
		c.BrainDir = "brain"
	}
	if c.Timers.EntrySeconds == 0 {
		c.Timers.EntrySeconds = 60
	}
	if c.Timers.PositionCheckSeconds == 0 {
		c.Timers.PositionCheckSeconds = 10
	}
	if c.Risk.MaxShares == 0 {
		c.Risk.MaxShares = 2
	}
	if c.Risk.MaxDailyLossCents == 0 {
		c.Risk.MaxDailyLossCents = 1000
	}
	if c.Risk.MaxConsecutiveLosses == 0 {
		c.Risk.MaxConsecutiveLosses = 7
	}
	if c.Risk.MinBalanceCents == 0 {
		c.Risk.MinBalanceCents = 500
	}
	if c.Risk.MinMinutesToExpiry == 0 {
		c.Risk.MinMinutesToExpiry = 2.0
	}
	if c.Exit.TakeProfitCents == 0 {
		c.Exit.TakeProfitCents = 20
	}
	if c.Exit.StopLossCents == 0 {
		c.Exit.StopLossCents = 20
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://api.elections.kalshi.com"
	}
	if c.Exchange.WSURL == "" {
		c.Exchange.WSURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	}
	if c.Exchange.RequestsPerSec == 0 {
		c.Exchange.RequestsPerSec = 5
	}
	if c.PriceFeed.BaseURL == "" {
		c.PriceFeed.BaseURL = "https://api.binance.us"
	}
	if c.PriceFeed.WSURL == "" {
		c.PriceFeed.WSURL = "wss://stream.binance.us:9443"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "NOOP"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1200
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}

	// Secrets come from the environment, never from the yaml file.
	c.Exchange.KeyID = os.Getenv("KALSHI_API_KEY_ID")
	pemPath := os.Getenv("KALSHI_PRIVATE_KEY_PATH")
	if pemPath == "" {
		pemPath = "./kalshi_private_key.pem"
	}
	if pem, err := os.ReadFile(pemPath); err == nil {
		c.Exchange.PrivateKeyPEM = string(pem)
	}
	c.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
