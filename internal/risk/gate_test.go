package risk

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/voting"
)

func newTestGate(riskCfg config.RiskConfig, maxTradePct float64) *Gate {
	if riskCfg.MaxDrawdownPct == 0 {
		riskCfg.MaxDrawdownPct = 20
	}
	if riskCfg.MaxDailyLossPct == 0 {
		riskCfg.MaxDailyLossPct = 5
	}
	if riskCfg.MaxSectorExposurePct == 0 {
		riskCfg.MaxSectorExposurePct = 30
	}
	if riskCfg.EmergencyStopLossPct == 0 {
		riskCfg.EmergencyStopLossPct = 15
	}
	if maxTradePct == 0 {
		maxTradePct = 10
	}
	return NewGate(riskCfg, maxTradePct, logger.Discard())
}

func buyDecision(symbol string, qty int64, price float64) *voting.Decision {
	return &voting.Decision{
		Symbol:   symbol,
		Outcome:  voting.OutcomeBuy,
		Quantity: qty,
		Price:    price,
	}
}

func TestEvaluateDrawdownVeto(t *testing.T) {
	snap := &broker.Snapshot{Equity: 100_000, Cash: 100_000}
	d := buyDecision("SBER", 10, 280)

	t.Run("approved under 20 pct ceiling", func(t *testing.T) {
		g := newTestGate(config.RiskConfig{MaxDrawdownPct: 20}, 10)
		g.SeedPeakEquity(111_111)

		a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})
		assert.True(t, a.Approved)
		assert.InDelta(t, 10.0, a.DrawdownPct, 0.01)
		assert.Equal(t, int64(10), a.AdjustedQuantity)
	})

	t.Run("vetoed under 5 pct ceiling", func(t *testing.T) {
		g := newTestGate(config.RiskConfig{MaxDrawdownPct: 5}, 10)
		g.SeedPeakEquity(111_111)

		a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})
		assert.False(t, a.Approved)
		assert.Zero(t, a.AdjustedQuantity)
		assert.Contains(t, a.Reason, "drawdown")
	})

	t.Run("sell passes even in drawdown", func(t *testing.T) {
		g := newTestGate(config.RiskConfig{MaxDrawdownPct: 5}, 10)
		g.SeedPeakEquity(111_111)

		sell := &voting.Decision{Symbol: "SBER", Outcome: voting.OutcomeSell, Quantity: 10, Price: 280}
		a := g.Evaluate(sell, snap, nil)
		assert.True(t, a.Approved)
		assert.Equal(t, int64(10), a.AdjustedQuantity)
	})
}

func TestEvaluateScalesOversizedPosition(t *testing.T) {
	g := newTestGate(config.RiskConfig{}, 10)
	snap := &broker.Snapshot{Equity: 100_000, Cash: 100_000}

	// 100 lots at 280 = 28,000, cap is 10% of equity = 10,000.
	d := buyDecision("SBER", 100, 280)
	a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})

	require.True(t, a.Approved)
	assert.Equal(t, int64(35), a.AdjustedQuantity) // floor(10000/280)
}

func TestEvaluateRejectsWhenScaledToZero(t *testing.T) {
	g := newTestGate(config.RiskConfig{}, 10)
	snap := &broker.Snapshot{Equity: 5_000, Cash: 5_000}

	// Cap is 500, one lot costs 7100.
	d := buyDecision("LKOH", 3, 7100)
	a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})

	assert.False(t, a.Approved)
	assert.Equal(t, "position too small after risk scaling", a.Reason)
}

func TestEvaluateSectorExposureCap(t *testing.T) {
	g := newTestGate(config.RiskConfig{MaxSectorExposurePct: 30}, 50)
	snap := &broker.Snapshot{
		Equity: 100_000,
		Cash:   70_000,
		Positions: []broker.Position{
			{Symbol: "GAZP", Quantity: 200, CurrentPrice: 130},  // Energy, 26,000
			{Symbol: "SBER", Quantity: 10, CurrentPrice: 280},   // Finance
		},
	}

	// 28,400 of Energy on top of 26,000 existing blows the 30% cap.
	d := buyDecision("ROSN", 40, 710)
	a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})
	assert.False(t, a.Approved)
	assert.Contains(t, a.Reason, "sector Energy")

	// A different sector is fine.
	d2 := buyDecision("YDEX", 2, 4200)
	a2 := g.Evaluate(d2, snap, &broker.Quote{Volatility: 0.01})
	assert.True(t, a2.Approved)
}

func TestEvaluateHoldOnlyReports(t *testing.T) {
	g := newTestGate(config.RiskConfig{}, 10)
	snap := &broker.Snapshot{Equity: 100_000}

	d := &voting.Decision{Symbol: "SBER", Outcome: voting.OutcomeHold}
	a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.06})

	assert.True(t, a.Approved)
	assert.NotEmpty(t, a.RiskLevel)
}

func TestRiskLevels(t *testing.T) {
	assert.Equal(t, LevelLow, levelFor(10))
	assert.Equal(t, LevelMedium, levelFor(50))
	assert.Equal(t, LevelHigh, levelFor(80))
}

func TestEmergencyStops(t *testing.T) {
	g := newTestGate(config.RiskConfig{EmergencyStopLossPct: 15}, 10)
	snap := &broker.Snapshot{
		Equity: 100_000,
		Positions: []broker.Position{
			{Symbol: "GAZP", Quantity: 100, UnrealizedPnLPct: -20},
			{Symbol: "SBER", Quantity: 50, UnrealizedPnLPct: -5},
			{Symbol: "LKOH", Quantity: 2, UnrealizedPnLPct: 12},
		},
	}

	sales := g.EmergencyStops(snap)
	require.Len(t, sales, 1)
	assert.Equal(t, "GAZP", sales[0].Symbol)
	assert.Equal(t, int64(100), sales[0].Quantity)
	assert.Contains(t, sales[0].Reason, "emergency threshold")
}

func TestEvaluateDailyLossVeto(t *testing.T) {
	g := newTestGate(config.RiskConfig{MaxDailyLossPct: 5, MaxDrawdownPct: 90}, 10)
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return day }
	d := buyDecision("SBER", 10, 280)

	// First observation of the day sets the baseline.
	a := g.Evaluate(d, &broker.Snapshot{Equity: 100_000, Cash: 100_000}, &broker.Quote{Volatility: 0.01})
	require.True(t, a.Approved)
	assert.Zero(t, a.DailyLossPct)

	// 6% down since the day started: BUY is vetoed.
	down := &broker.Snapshot{Equity: 94_000, Cash: 94_000}
	a = g.Evaluate(d, down, &broker.Quote{Volatility: 0.01})
	assert.False(t, a.Approved)
	assert.Contains(t, a.Reason, "daily loss")
	assert.InDelta(t, 6.0, a.DailyLossPct, 1e-9)

	// SELL still passes: the limit only stops new exposure.
	sell := &voting.Decision{Symbol: "SBER", Outcome: voting.OutcomeSell, Quantity: 10, Price: 280}
	a = g.Evaluate(sell, down, &broker.Quote{Volatility: 0.01})
	assert.True(t, a.Approved)

	// A new calendar day resets the baseline to the first equity seen.
	day = day.Add(24 * time.Hour)
	a = g.Evaluate(d, down, &broker.Quote{Volatility: 0.01})
	assert.True(t, a.Approved)
	assert.Zero(t, a.DailyLossPct)
}

func TestEvaluateZeroEquityStaysFinite(t *testing.T) {
	g := newTestGate(config.RiskConfig{}, 10)
	snap := &broker.Snapshot{
		Equity:    0,
		Positions: []broker.Position{{Symbol: "GAZP", Quantity: 10, CurrentPrice: 180}},
	}

	a := g.Evaluate(buyDecision("GAZP", 0, 280), snap, &broker.Quote{Volatility: 0.01})

	assert.False(t, math.IsNaN(a.SectorExposurePct))
	assert.False(t, math.IsInf(a.SectorExposurePct, 0))
	_, err := json.Marshal(a)
	require.NoError(t, err)
}

func TestSetMaxTradePct(t *testing.T) {
	g := newTestGate(config.RiskConfig{}, 10)
	snap := &broker.Snapshot{Equity: 100_000, Cash: 100_000}
	d := buyDecision("SBER", 35, 280)

	a := g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})
	require.True(t, a.Approved)
	assert.Equal(t, int64(35), a.AdjustedQuantity)

	g.SetMaxTradePct(1)
	a = g.Evaluate(d, snap, &broker.Quote{Volatility: 0.01})
	require.True(t, a.Approved)
	assert.Equal(t, int64(3), a.AdjustedQuantity)
}

func TestPeakEquityTracksHighWaterMark(t *testing.T) {
	g := newTestGate(config.RiskConfig{MaxDrawdownPct: 20}, 10)

	assert.Zero(t, g.Drawdown(100_000)) // first observation seeds the peak
	assert.Zero(t, g.Drawdown(120_000)) // new peak
	assert.InDelta(t, 25.0, g.Drawdown(90_000), 1e-9)
	g.SeedPeakEquity(80_000) // cannot lower the mark
	assert.InDelta(t, 25.0, g.Drawdown(90_000), 1e-9)
}
