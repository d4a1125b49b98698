package broker

import (
	"context"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Broker is the brokerage capability the trading cycle consumes. The
// orchestrator never sees which driver backs it.
type Broker interface {
	IsMarketOpen() bool
	MarketStatus() MarketStatus
	Quote(ctx context.Context, symbol string) (*Quote, error)
	SubmitOrder(ctx context.Context, symbol string, side Side, quantity int64) (*OrderResult, error)
	PortfolioSnapshot(ctx context.Context) (*Snapshot, error)
	Stop() error
}

type MarketStatus struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

type Quote struct {
	Symbol     string
	LastPrice  float64
	Change1d   float64 // percent
	Change1w   float64 // percent
	Volume24h  float64
	Volatility float64 // mean absolute 1h move as a fraction of price
}

type OrderResult struct {
	OrderID   string
	Accepted  bool
	FillPrice float64
	FilledQty int64
}

type Position struct {
	Symbol           string  `json:"symbol"`
	Quantity         float64 `json:"quantity"`
	AvgPrice         float64 `json:"avg_price"`
	CurrentPrice     float64 `json:"current_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
}

type Snapshot struct {
	Equity    float64    `json:"equity"`
	Cash      float64    `json:"cash"`
	Positions []Position `json:"positions"`
}

func (s *Snapshot) Position(symbol string) *Position {
	for i := range s.Positions {
		if s.Positions[i].Symbol == symbol {
			return &s.Positions[i]
		}
	}
	return nil
}
