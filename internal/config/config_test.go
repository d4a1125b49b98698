package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "broker:\n  driver: paper\n"))
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Broker.Driver)
	assert.Equal(t, 100000.0, cfg.Broker.PaperCash)
	require.Len(t, cfg.Agents, 3)
	assert.Equal(t, "jordan", cfg.Agents[0].Name)
	assert.Equal(t, []string{"SBER", "GAZP", "LKOH", "YDEX", "ROSN"}, cfg.Trading.Watchlist)
	assert.Equal(t, 60, cfg.Trading.IntervalMinutes)
	assert.Equal(t, 10.0, cfg.Trading.MaxTradePct)
	assert.Equal(t, 20.0, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 30000.0, cfg.Budget.Shared)
	assert.Equal(t, ResetPerCycle, cfg.Budget.ResetPolicy)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 60*time.Second, cfg.Agents[0].Timeout())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
broker:
  driver: tinkoff
  token: t.secret
  sandbox: true
agents:
  - name: alpha
    model: gpt-4o
    solo_budget: 5000
  - name: beta
    model: deepseek-chat
    solo_budget: 7000
budget:
  shared: 12000
  reset_policy: per_day
trading:
  watchlist: [SBER]
  max_trade_pct: 25
`))
	require.NoError(t, err)

	assert.True(t, cfg.IsSandbox())
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, ResetPerDay, cfg.Budget.ResetPolicy)
	assert.Equal(t, 25.0, cfg.Trading.MaxTradePct)
	// shared 12000 + 5000 + 7000
	assert.InDelta(t, 24000, cfg.TotalBudgetCap(), 1e-9)
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"tinkoff without token", func(c *Config) {
			c.Broker.Driver = "tinkoff"
			c.Broker.Token = ""
		}, "broker.token"},
		{"unknown driver", func(c *Config) {
			c.Broker.Driver = "etrade"
		}, "unknown broker.driver"},
		{"single agent", func(c *Config) {
			c.Agents = c.Agents[:1]
		}, "at least 2 agents"},
		{"duplicate agent", func(c *Config) {
			c.Agents[1].Name = c.Agents[0].Name
		}, "duplicate agent name"},
		{"missing model", func(c *Config) {
			c.Agents[0].Model = ""
		}, "model is required"},
		{"trade pct out of range", func(c *Config) {
			c.Trading.MaxTradePct = 150
		}, "max_trade_pct"},
		{"bad reset policy", func(c *Config) {
			c.Budget.ResetPolicy = "per_week"
		}, "reset_policy"},
		{"telegram without token", func(c *Config) {
			c.Telegram.Enabled = true
		}, "telegram.bot_token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			SetDefaults(cfg)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := &Config{}
	SetDefaults(cfg)
	require.NoError(t, cfg.Validate())
}

func TestExchangeLocation(t *testing.T) {
	cfg := &Config{}
	loc := cfg.ExchangeLocation()
	require.NotNil(t, loc)

	// MSK is UTC+3 year round.
	_, offset := time.Date(2026, 6, 1, 12, 0, 0, 0, loc).Zone()
	assert.Equal(t, 3*60*60, offset)
}
