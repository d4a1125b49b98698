package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Agents    []AgentConfig   `yaml:"agents"`
	Trading   TradingConfig   `yaml:"trading"`
	Risk      RiskConfig      `yaml:"risk"`
	Budget    BudgetConfig    `yaml:"budget"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Web       WebConfig       `yaml:"web"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type BrokerConfig struct {
	Driver    string  `yaml:"driver"` // tinkoff or paper
	Token     string  `yaml:"token"`
	Sandbox   bool    `yaml:"sandbox"`
	AccountID string  `yaml:"account_id"`
	PaperCash float64 `yaml:"paper_cash"`
}

// AgentConfig is the static identity table for one advisor: who it is,
// which model backs it and how much it may spend on its own.
type AgentConfig struct {
	Name           string  `yaml:"name"`
	Persona        string  `yaml:"persona"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	SoloBudget     float64 `yaml:"solo_budget"`
}

type TradingConfig struct {
	Watchlist         []string `yaml:"watchlist"`
	IntervalMinutes   int      `yaml:"interval_minutes"`
	MaxTradePct       float64  `yaml:"max_trade_pct"`
	SymbolConcurrency int      `yaml:"symbol_concurrency"`
}

type RiskConfig struct {
	MaxDrawdownPct       float64           `yaml:"max_drawdown_pct"`
	MaxDailyLossPct      float64           `yaml:"max_daily_loss_pct"`
	MaxSectorExposurePct float64           `yaml:"max_sector_exposure_pct"`
	EmergencyStopLossPct float64           `yaml:"emergency_stop_loss_pct"`
	Sectors              map[string]string `yaml:"sectors"`
}

const (
	ResetPerCycle = "per_cycle"
	ResetPerDay   = "per_day"
)

type BudgetConfig struct {
	Shared      float64 `yaml:"shared"`
	ResetPolicy string  `yaml:"reset_policy"` // per_cycle or per_day
}

type SentimentConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultAgents is the reference three-agent deployment: an aggressive
// momentum chaser, a capital protector and a patient long-term thinker.
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{
			Name:       "jordan",
			Persona:    "Aggressive momentum trader. Chases strong short-term trends, accepts risk for outsized returns, sizes positions generously.",
			Model:      "gpt-4o",
			SoloBudget: 10000,
		},
		{
			Name:       "bohlen",
			Persona:    "Brutally honest capital protector. Avoids losses first, prefers solid companies and small positions, says plainly when a trade is bad.",
			Model:      "deepseek-chat",
			BaseURL:    "https://api.deepseek.com/v1",
			SoloBudget: 10000,
		},
		{
			Name:       "frodo",
			Persona:    "Patient long-term investor. Thinks in quarters, waits for good entries, manages downside actively and never hurries.",
			Model:      "gpt-4o-mini",
			SoloBudget: 10000,
		},
	}
}

func SetDefaults(cfg *Config) {
	if cfg.Broker.Driver == "" {
		cfg.Broker.Driver = "paper"
	}
	if cfg.Broker.PaperCash == 0 {
		cfg.Broker.PaperCash = 100000
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents()
	}
	for i := range cfg.Agents {
		if cfg.Agents[i].TimeoutSeconds == 0 {
			cfg.Agents[i].TimeoutSeconds = 60
		}
		if cfg.Agents[i].SoloBudget == 0 {
			cfg.Agents[i].SoloBudget = 10000
		}
	}
	if len(cfg.Trading.Watchlist) == 0 {
		cfg.Trading.Watchlist = []string{"SBER", "GAZP", "LKOH", "YDEX", "ROSN"}
	}
	if cfg.Trading.IntervalMinutes == 0 {
		cfg.Trading.IntervalMinutes = 60
	}
	if cfg.Trading.MaxTradePct == 0 {
		cfg.Trading.MaxTradePct = 10
	}
	if cfg.Trading.SymbolConcurrency == 0 {
		cfg.Trading.SymbolConcurrency = 3
	}
	if cfg.Risk.MaxDrawdownPct == 0 {
		cfg.Risk.MaxDrawdownPct = 20
	}
	if cfg.Risk.MaxDailyLossPct == 0 {
		cfg.Risk.MaxDailyLossPct = 5
	}
	if cfg.Risk.MaxSectorExposurePct == 0 {
		cfg.Risk.MaxSectorExposurePct = 30
	}
	if cfg.Risk.EmergencyStopLossPct == 0 {
		cfg.Risk.EmergencyStopLossPct = 15
	}
	if cfg.Budget.Shared == 0 {
		cfg.Budget.Shared = 30000
	}
	if cfg.Budget.ResetPolicy == "" {
		cfg.Budget.ResetPolicy = ResetPerCycle
	}
	if cfg.Sentiment.TimeoutSeconds == 0 {
		cfg.Sentiment.TimeoutSeconds = 30
	}
	if cfg.Sentiment.CacheTTLSeconds == 0 {
		cfg.Sentiment.CacheTTLSeconds = 300
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Broker.Driver {
	case "tinkoff":
		if c.Broker.Token == "" {
			return fmt.Errorf("broker.token is required for the tinkoff driver")
		}
	case "paper":
	default:
		return fmt.Errorf("unknown broker.driver %q", c.Broker.Driver)
	}

	if len(c.Agents) < 2 {
		return fmt.Errorf("at least 2 agents are required for a quorum, got %d", len(c.Agents))
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent name is required")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
		if a.Model == "" {
			return fmt.Errorf("agent %s: model is required", a.Name)
		}
		if a.SoloBudget < 0 {
			return fmt.Errorf("agent %s: solo_budget must not be negative", a.Name)
		}
	}

	if c.Trading.MaxTradePct <= 0 || c.Trading.MaxTradePct > 100 {
		return fmt.Errorf("trading.max_trade_pct must be in (0, 100], got %.2f", c.Trading.MaxTradePct)
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 100 {
		return fmt.Errorf("risk.max_drawdown_pct must be in (0, 100], got %.2f", c.Risk.MaxDrawdownPct)
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 100 {
		return fmt.Errorf("risk.max_daily_loss_pct must be in (0, 100], got %.2f", c.Risk.MaxDailyLossPct)
	}
	if p := c.Budget.ResetPolicy; p != ResetPerCycle && p != ResetPerDay {
		return fmt.Errorf("budget.reset_policy must be per_cycle or per_day, got %q", p)
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// TotalBudgetCap is the sum of every solo cap plus the shared pool. The
// configure endpoint checks it against portfolio equity before persisting.
func (c *Config) TotalBudgetCap() float64 {
	total := c.Budget.Shared
	for _, a := range c.Agents {
		total += a.SoloBudget
	}
	return total
}

func (c *Config) IsSandbox() bool {
	return c.Broker.Sandbox
}

func (c *Config) ExchangeLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Trading.IntervalMinutes) * time.Minute
}

func (c *Config) SentimentTimeout() time.Duration {
	return time.Duration(c.Sentiment.TimeoutSeconds) * time.Second
}

func (c *Config) SentimentCacheTTL() time.Duration {
	return time.Duration(c.Sentiment.CacheTTLSeconds) * time.Second
}

func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}
