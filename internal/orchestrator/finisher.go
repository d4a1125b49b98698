package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/budget"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/memory"
	"github.com/camuig/quorum-trader/internal/storage"
	"github.com/camuig/quorum-trader/internal/telegram"
	"github.com/camuig/quorum-trader/internal/voting"
)

// finisher terminates a risk-approved decision. The implementation is picked
// when the cycle starts: a dry run gets recordOnly and a market-closed live
// run gets deferOnly. Neither holds a broker or a budget ledger, so no code
// path in those modes can reach SubmitOrder or commit capital.
type finisher interface {
	finish(ctx context.Context, rec *DecisionRecord)
	finishForced(ctx context.Context, symbol string, qty int64, reason string) ForcedExitRecord
}

// recordOnly marks decisions as recorded and leaves the world untouched.
type recordOnly struct{}

func (recordOnly) finish(_ context.Context, rec *DecisionRecord) {
	rec.Status = DecisionRecorded
}

func (recordOnly) finishForced(_ context.Context, symbol string, qty int64, reason string) ForcedExitRecord {
	return ForcedExitRecord{Symbol: symbol, Quantity: qty, Reason: reason, Executed: false}
}

// deferOnly is the live-mode counterpart of recordOnly for a closed market:
// the vote stands, execution waits.
type deferOnly struct{}

func (deferOnly) finish(_ context.Context, rec *DecisionRecord) {
	rec.Status = DecisionDeferred
	rec.Reason = "market closed"
}

func (deferOnly) finishForced(_ context.Context, symbol string, qty int64, reason string) ForcedExitRecord {
	return ForcedExitRecord{Symbol: symbol, Quantity: qty,
		Reason: reason + " (market closed, exit deferred)", Executed: false}
}

// liveExecutor submits orders and, on acceptance, updates trades, agent
// memories and the notifier.
type liveExecutor struct {
	cycleID   string
	broker    broker.Broker
	allocator *budget.Allocator
	repo      *storage.Repository
	memory    *memory.Manager
	notifier  *telegram.Notifier
	agents    []string // every configured agent, for closing memories on exit
	logger    *logger.Logger
}

func (e *liveExecutor) finish(ctx context.Context, rec *DecisionRecord) {
	d := rec.Decision
	side := broker.SideBuy
	if d.Outcome == voting.OutcomeSell {
		side = broker.SideSell
	}

	// Budget is committed only on this path. A SELL frees capital, so only
	// BUYs reserve; consensus trades always draw on the shared pool.
	value := float64(rec.Quantity) * d.Price
	if side == broker.SideBuy {
		if err := e.allocator.Reserve(d.AgentsInFavor, value, true); err != nil {
			rec.Status = DecisionRejectedBudget
			rec.Reason = err.Error()
			e.logger.Info("trade rejected by budget", "symbol", rec.Symbol, "reason", rec.Reason)
			return
		}
	}

	res, err := e.broker.SubmitOrder(ctx, rec.Symbol, side, rec.Quantity)
	if err != nil || !res.Accepted {
		rec.Status = DecisionBrokerRejected
		if err != nil {
			rec.Reason = err.Error()
		} else {
			rec.Reason = "order not accepted"
		}
		// A rejected BUY gives its reservation back.
		if side == broker.SideBuy {
			e.allocator.Release(d.AgentsInFavor, value, true)
		}
		e.logger.Error("order rejected", "symbol", rec.Symbol, "side", side, "reason", rec.Reason)
		return
	}

	rec.Status = DecisionExecuted
	rec.OrderID = res.OrderID
	rec.FillPrice = res.FillPrice

	switch side {
	case broker.SideBuy:
		e.recordBuy(rec)
	case broker.SideSell:
		e.recordSell(rec)
	}

	e.notifier.NotifyTrade(rec.Symbol, string(d.Outcome), res.FillPrice, rec.Quantity,
		strings.Join(d.AgentsInFavor, ", "))
}

func (e *liveExecutor) recordBuy(rec *DecisionRecord) {
	trade := &storage.Trade{
		CycleID:  e.cycleID,
		Symbol:   rec.Symbol,
		Action:   string(voting.OutcomeBuy),
		Price:    rec.FillPrice,
		Quantity: rec.Quantity,
		OrderID:  rec.OrderID,
		Agents:   strings.Join(rec.Decision.AgentsInFavor, ","),
		Status:   "open",
	}
	if err := e.repo.SaveTrade(trade); err != nil {
		e.logger.Error("save trade", "symbol", rec.Symbol, "error", err)
	}
	for _, agent := range rec.Decision.AgentsInFavor {
		if err := e.memory.RecordEntry(agent, rec.Symbol, rec.Quantity, rec.FillPrice, rec.Decision.Confidence); err != nil {
			e.logger.Error("record memory entry", "agent", agent, "error", err)
		}
	}
}

func (e *liveExecutor) recordSell(rec *DecisionRecord) {
	e.closePosition(rec.Symbol, rec.FillPrice)
}

// closePosition marks the open trade for the symbol closed and settles every
// agent's open memory records at the exit price.
func (e *liveExecutor) closePosition(symbol string, exitPrice float64) {
	open, err := e.repo.GetOpenTradeBySymbol(symbol)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			e.logger.Error("load open trade", "symbol", symbol, "error", err)
		}
	} else {
		open.PnL = (exitPrice - open.Price) * float64(open.Quantity)
		open.Status = "closed"
		if err := e.repo.UpdateTrade(open); err != nil {
			e.logger.Error("close trade", "symbol", symbol, "error", err)
		}
	}
	for _, agent := range e.agents {
		if err := e.memory.RecordExit(agent, symbol, exitPrice); err != nil {
			e.logger.Error("record memory exit", "agent", agent, "error", err)
		}
	}
}

func (e *liveExecutor) finishForced(ctx context.Context, symbol string, qty int64, reason string) ForcedExitRecord {
	out := ForcedExitRecord{Symbol: symbol, Quantity: qty, Reason: reason}

	res, err := e.broker.SubmitOrder(ctx, symbol, broker.SideSell, qty)
	if err != nil || !res.Accepted {
		detail := "order not accepted"
		if err != nil {
			detail = err.Error()
		}
		e.logger.Error("emergency exit rejected", "symbol", symbol, "error", detail)
		out.Reason = fmt.Sprintf("%s (exit failed: %s)", reason, detail)
		return out
	}

	out.Executed = true
	out.OrderID = res.OrderID
	e.closePosition(symbol, res.FillPrice)
	e.notifier.NotifyEmergencyStop(symbol, qty, reason)
	return out
}
