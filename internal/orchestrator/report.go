package orchestrator

import (
	"time"

	"github.com/camuig/quorum-trader/internal/risk"
	"github.com/camuig/quorum-trader/internal/voting"
)

// Cycle statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Per-symbol decision statuses.
const (
	DecisionExecuted       = "executed"
	DecisionRecorded       = "recorded" // dry run, never reached the broker
	DecisionDeferred       = "deferred" // live run while the market is closed
	DecisionHold           = "hold"
	DecisionNoConsensus    = "no_consensus"
	DecisionRejectedRisk   = "rejected_risk"
	DecisionRejectedBudget = "rejected_budget"
	DecisionBrokerRejected = "broker_rejected"
	DecisionError          = "error"
)

// DecisionRecord is the full audit trail of one symbol inside a cycle: the
// vote, the risk verdict and what happened downstream.
type DecisionRecord struct {
	Symbol    string           `json:"symbol"`
	Decision  *voting.Decision `json:"decision,omitempty"`
	Risk      *risk.Assessment `json:"risk,omitempty"`
	Status    string           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Quantity  int64            `json:"quantity,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
	FillPrice float64          `json:"fill_price,omitempty"`
}

// ForcedExitRecord documents an emergency stop, which bypasses the vote.
type ForcedExitRecord struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
	Executed bool   `json:"executed"`
	OrderID  string `json:"order_id,omitempty"`
}

// Report is returned by every cycle run and persisted as a CycleRecord.
type Report struct {
	CycleID          string             `json:"cycle_id"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
	DryRun           bool               `json:"dry_run"`
	MarketOpen       bool               `json:"market_open"`
	Status           string             `json:"status"`
	Watchlist        []string           `json:"watchlist"`
	Decisions        []DecisionRecord   `json:"decisions"`
	ForcedExits      []ForcedExitRecord `json:"forced_exits,omitempty"`
	SymbolsAnalyzed  int                `json:"symbols_analyzed"`
	TradesProposed   int                `json:"trades_proposed"`
	TradesExecuted   int                `json:"trades_executed"`
	ConsensusReached int                `json:"consensus_reached"`
	Error            string             `json:"error,omitempty"`
}
