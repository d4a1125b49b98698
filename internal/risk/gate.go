// Package risk stands between a consensus vote and an executed order: the
// drawdown veto, sector caps, volatility-scaled sizing and the emergency stop.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/voting"
)

// defaultSectors covers the liquid tickers the reference deployment trades;
// config risk.sectors extends or overrides it.
var defaultSectors = map[string]string{
	"SBER": "Finance",
	"VTBR": "Finance",
	"MOEX": "Finance",
	"GAZP": "Energy",
	"LKOH": "Energy",
	"ROSN": "Energy",
	"NVTK": "Energy",
	"TATN": "Energy",
	"YDEX": "Technology",
	"MTSS": "Telecom",
	"GMKN": "Materials",
	"CHMF": "Materials",
	"NLMK": "Materials",
	"ALRS": "Materials",
	"PLZL": "Materials",
	"PHOR": "Chemicals",
	"MGNT": "Retail",
	"IRAO": "Utilities",
}

type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Assessment is ephemeral: computed per decision, recorded on the report,
// then discarded.
type Assessment struct {
	Approved          bool    `json:"approved"`
	AdjustedQuantity  int64   `json:"adjusted_quantity"`
	Reason            string  `json:"reason,omitempty"`
	DrawdownPct       float64 `json:"drawdown_pct"`
	DailyLossPct      float64 `json:"daily_loss_pct"`
	RiskScore         float64 `json:"risk_score"`
	RiskLevel         Level   `json:"risk_level"`
	Sector            string  `json:"sector"`
	SectorExposurePct float64 `json:"sector_exposure_pct"`
}

// ForcedSale is the one case where the gate originates a decision instead of
// gating one: a position bleeding past the emergency threshold.
type ForcedSale struct {
	Symbol   string
	Quantity int64
	Reason   string
}

type Gate struct {
	cfg     config.RiskConfig
	sectors map[string]string
	logger  *logger.Logger
	now     func() time.Time

	mu             sync.Mutex
	maxTradePct    float64
	peakEquity     float64
	dayStartEquity float64
	dayStartDate   time.Time
}

func NewGate(cfg config.RiskConfig, maxTradePct float64, log *logger.Logger) *Gate {
	sectors := make(map[string]string, len(defaultSectors)+len(cfg.Sectors))
	for k, v := range defaultSectors {
		sectors[k] = v
	}
	for k, v := range cfg.Sectors {
		sectors[k] = v
	}

	return &Gate{
		cfg:         cfg,
		maxTradePct: maxTradePct,
		sectors:     sectors,
		logger:      log,
		now:         time.Now,
	}
}

// SetMaxTradePct applies a reconfigured position-size cap to subsequent
// evaluations. Called by the autopilot configure path.
func (g *Gate) SetMaxTradePct(pct float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxTradePct = pct
}

// Evaluate checks one consensus decision against the portfolio snapshot.
// HOLD and SELL pass through with reporting fields filled; BUY goes through
// the drawdown veto, position scaling and the sector cap.
func (g *Gate) Evaluate(d *voting.Decision, snap *broker.Snapshot, quote *broker.Quote) Assessment {
	drawdown := g.updateDrawdown(snap.Equity)
	dailyLoss := g.updateDailyLoss(snap.Equity)
	sector := g.sectorOf(d.Symbol)

	a := Assessment{
		Approved:         true,
		AdjustedQuantity: d.Quantity,
		DrawdownPct:      drawdown,
		DailyLossPct:     dailyLoss,
		Sector:           sector,
	}

	var volatility float64
	if quote != nil {
		volatility = quote.Volatility
	}
	positionValue := float64(d.Quantity) * d.Price
	a.RiskScore = compositeScore(volatility, g.sectorExposure(sector, snap), snap.Equity, positionValue)
	a.RiskLevel = levelFor(a.RiskScore)

	if d.Outcome != voting.OutcomeBuy {
		return a
	}

	// Hard veto, regardless of the vote.
	if drawdown > g.cfg.MaxDrawdownPct {
		a.Approved = false
		a.AdjustedQuantity = 0
		a.Reason = fmt.Sprintf("drawdown %.1f%% exceeds ceiling %.1f%%", drawdown, g.cfg.MaxDrawdownPct)
		return a
	}

	if dailyLoss > g.cfg.MaxDailyLossPct {
		a.Approved = false
		a.AdjustedQuantity = 0
		a.Reason = fmt.Sprintf("daily loss %.1f%% exceeds limit %.1f%%", dailyLoss, g.cfg.MaxDailyLossPct)
		return a
	}

	if d.Price <= 0 {
		a.Approved = false
		a.AdjustedQuantity = 0
		a.Reason = "no reference price"
		return a
	}

	// Scale down rather than reject when the position is too large.
	maxValue := snap.Equity * g.MaxTradePct() / 100
	if positionValue > maxValue {
		scaled := int64(math.Floor(maxValue / d.Price))
		if scaled <= 0 {
			a.Approved = false
			a.AdjustedQuantity = 0
			a.Reason = "position too small after risk scaling"
			return a
		}
		g.logger.Info("position scaled down by risk gate",
			"symbol", d.Symbol, "proposed", d.Quantity, "adjusted", scaled)
		a.AdjustedQuantity = scaled
		positionValue = float64(scaled) * d.Price
	}

	// Sector exposure cap.
	exposure := g.sectorExposure(sector, snap) + positionValue
	if snap.Equity > 0 {
		a.SectorExposurePct = exposure / snap.Equity * 100
	}
	if snap.Equity > 0 && a.SectorExposurePct > g.cfg.MaxSectorExposurePct {
		a.Approved = false
		a.AdjustedQuantity = 0
		a.Reason = fmt.Sprintf("sector %s exposure %.1f%% exceeds cap %.1f%%",
			sector, a.SectorExposurePct, g.cfg.MaxSectorExposurePct)
		return a
	}

	return a
}

// EmergencyStops returns forced SELL recommendations for positions whose
// unrealized loss breaches the configured threshold. These bypass the vote.
func (g *Gate) EmergencyStops(snap *broker.Snapshot) []ForcedSale {
	var sales []ForcedSale
	for _, pos := range snap.Positions {
		if pos.UnrealizedPnLPct < -g.cfg.EmergencyStopLossPct {
			sales = append(sales, ForcedSale{
				Symbol:   pos.Symbol,
				Quantity: int64(pos.Quantity),
				Reason: fmt.Sprintf("unrealized loss %.1f%% beyond emergency threshold %.1f%%",
					pos.UnrealizedPnLPct, g.cfg.EmergencyStopLossPct),
			})
		}
	}
	return sales
}

// MaxTradePct returns the position-size cap currently in force.
func (g *Gate) MaxTradePct() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxTradePct
}

// updateDailyLoss tracks equity at the start of each calendar day and
// reports the loss since then as a positive percentage. A new day resets
// the baseline to the first equity observed.
func (g *Gate) updateDailyLoss(equity float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !sameDay(g.dayStartDate, now) {
		g.dayStartDate = now
		g.dayStartEquity = equity
	}
	if g.dayStartEquity <= 0 {
		return 0
	}
	return (g.dayStartEquity - equity) / g.dayStartEquity * 100
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (g *Gate) updateDrawdown(equity float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if equity > g.peakEquity {
		g.peakEquity = equity
	}
	if g.peakEquity <= 0 {
		return 0
	}
	return (g.peakEquity - equity) / g.peakEquity * 100
}

// Drawdown reports the current drawdown from the high-water mark, raising
// the mark first when equity made a new peak.
func (g *Gate) Drawdown(equity float64) float64 {
	return g.updateDrawdown(equity)
}

// SeedPeakEquity lets callers restore the high-water mark, e.g. after a
// restart. Only raises the stored peak.
func (g *Gate) SeedPeakEquity(equity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if equity > g.peakEquity {
		g.peakEquity = equity
	}
}

func (g *Gate) sectorOf(symbol string) string {
	if s, ok := g.sectors[symbol]; ok {
		return s
	}
	return "Unknown"
}

func (g *Gate) sectorExposure(sector string, snap *broker.Snapshot) float64 {
	var total float64
	for _, pos := range snap.Positions {
		if g.sectorOf(pos.Symbol) == sector {
			total += pos.CurrentPrice * pos.Quantity
		}
	}
	return total
}

// compositeScore blends volatility, sector concentration and position size
// relative to equity into 0-100, higher = riskier. Reporting only.
func compositeScore(volatility, sectorExposure, equity, positionValue float64) float64 {
	// Volatility: 1% hourly moves are calm, 5% violent.
	volScore := math.Min(volatility/0.05, 1)

	var concScore, sizeScore float64
	if equity > 0 {
		concScore = math.Min(sectorExposure/equity/0.5, 1)
		sizeScore = math.Min(positionValue/equity/0.25, 1)
	}

	return (volScore*0.4 + concScore*0.3 + sizeScore*0.3) * 100
}

func levelFor(score float64) Level {
	switch {
	case score < 35:
		return LevelLow
	case score < 65:
		return LevelMedium
	default:
		return LevelHigh
	}
}
