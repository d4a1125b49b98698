package storage

import "time"

// Trade is a broker-accepted order produced by a consensus decision.
type Trade struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CycleID  string  `gorm:"index" json:"cycle_id"`
	Symbol   string  `gorm:"index;not null" json:"symbol"`
	Action   string  `gorm:"not null" json:"action"` // BUY or SELL
	Price    float64 `gorm:"not null" json:"price"`
	Quantity int64   `gorm:"not null" json:"quantity"`
	OrderID  string  `json:"order_id"`
	Agents   string  `json:"agents"` // comma-separated agents in favor

	PnL    float64 `gorm:"column:pnl" json:"pnl"`
	Status string  `gorm:"not null;default:'open'" json:"status"` // open, closed
}

// AgentTradeRecord is one agent's memory of a trade it voted for. Outcome
// stays "open" until the position is closed and the P&L is known.
type AgentTradeRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Agent      string     `gorm:"index;not null" json:"agent"`
	Symbol     string     `gorm:"index;not null" json:"symbol"`
	Action     string     `gorm:"not null" json:"action"`
	Quantity   int64      `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Confidence float64    `json:"confidence"`
	PnL        float64    `gorm:"column:pnl" json:"pnl"`
	Outcome    string     `gorm:"not null;default:'open'" json:"outcome"` // open, win, loss
	ClosedAt   *time.Time `json:"closed_at"`
}

// CycleRecord is the persisted report of one orchestrator pass.
type CycleRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CycleID          string    `gorm:"uniqueIndex;not null" json:"cycle_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	DryRun           bool      `json:"dry_run"`
	Status           string    `json:"status"` // completed, deferred, failed
	Watchlist        string    `json:"watchlist"`
	DecisionsJSON    string    `gorm:"type:text" json:"decisions_json"`
	SymbolsAnalyzed  int       `json:"symbols_analyzed"`
	TradesProposed   int       `json:"trades_proposed"`
	TradesExecuted   int       `json:"trades_executed"`
	ConsensusReached int       `json:"consensus_reached"`
	Error            string    `json:"error"`
}

// AutopilotConfig is a singleton row (ID is always 1). Mutated only through
// the configure operation.
type AutopilotConfig struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`

	Enabled         bool       `json:"enabled"`
	IntervalMinutes int        `json:"interval_minutes"`
	MaxTradePct     float64    `json:"max_trade_pct"`
	SharedBudget    float64    `json:"shared_budget"`
	SoloBudgetsJSON string     `gorm:"type:text" json:"-"`
	LastRun         *time.Time `json:"last_run"`
	NextRun         *time.Time `json:"next_run"`
}
