// Package orchestrator drives one trading cycle end to end: market check,
// emergency stops, per-symbol votes, risk and budget gating, execution and
// persistence. At most one cycle runs at a time.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camuig/quorum-trader/internal/advisor"
	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/budget"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/memory"
	"github.com/camuig/quorum-trader/internal/news"
	"github.com/camuig/quorum-trader/internal/risk"
	"github.com/camuig/quorum-trader/internal/sentiment"
	"github.com/camuig/quorum-trader/internal/storage"
	"github.com/camuig/quorum-trader/internal/telegram"
	"github.com/camuig/quorum-trader/internal/voting"
)

var ErrCycleInProgress = errors.New("cycle already in progress")

type Orchestrator struct {
	cfg       *config.Config
	broker    broker.Broker
	protocol  *voting.Protocol
	gate      *risk.Gate
	allocator *budget.Allocator
	repo      *storage.Repository
	memory    *memory.Manager
	scorer    sentiment.Scorer
	news      *news.Client
	notifier  *telegram.Notifier
	logger    *logger.Logger

	agentNames []string

	mu sync.Mutex
}

func New(
	cfg *config.Config,
	b broker.Broker,
	protocol *voting.Protocol,
	gate *risk.Gate,
	allocator *budget.Allocator,
	repo *storage.Repository,
	mem *memory.Manager,
	scorer sentiment.Scorer,
	newsClient *news.Client,
	notifier *telegram.Notifier,
	log *logger.Logger,
) *Orchestrator {
	names := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		names = append(names, a.Name)
	}
	return &Orchestrator{
		cfg:        cfg,
		broker:     b,
		protocol:   protocol,
		gate:       gate,
		allocator:  allocator,
		repo:       repo,
		memory:     mem,
		scorer:     scorer,
		news:       newsClient,
		notifier:   notifier,
		logger:     log,
		agentNames: names,
	}
}

// RunCycle executes one full pass over the watchlist. Returns
// ErrCycleInProgress without doing anything when another cycle holds the
// lock. A dry run produces the same report shape but never touches the
// broker: the recordOnly finisher has no broker reference.
func (o *Orchestrator) RunCycle(ctx context.Context, dryRun bool) (*Report, error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.mu.Unlock()

	report := &Report{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    dryRun,
		Watchlist: o.cfg.Trading.Watchlist,
		Status:    StatusCompleted,
	}
	report.MarketOpen = o.broker.IsMarketOpen()
	o.logger.Info("cycle started",
		"cycle_id", report.CycleID, "dry_run", dryRun, "market_open", report.MarketOpen)

	snap, err := o.broker.PortfolioSnapshot(ctx)
	if err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		report.FinishedAt = time.Now()
		o.persist(report)
		o.notifier.NotifyError("portfolio snapshot", err)
		return report, err
	}
	o.gate.SeedPeakEquity(snap.Equity)

	o.allocator.BeginCycle()

	// Dry run is caller intent, a closed market is an environment fact. Both
	// pick a finisher that cannot reach the broker or the budget ledger.
	var fin finisher
	switch {
	case dryRun:
		fin = recordOnly{}
	case !report.MarketOpen:
		fin = deferOnly{}
	default:
		fin = &liveExecutor{
			cycleID:   report.CycleID,
			broker:    o.broker,
			allocator: o.allocator,
			repo:      o.repo,
			memory:    o.memory,
			notifier:  o.notifier,
			agents:    o.agentNames,
			logger:    o.logger,
		}
	}

	// Emergency stops run before the vote and bypass it entirely.
	for _, sale := range o.gate.EmergencyStops(snap) {
		exit := fin.finishForced(ctx, sale.Symbol, sale.Quantity, sale.Reason)
		report.ForcedExits = append(report.ForcedExits, exit)
		if exit.Executed {
			report.TradesExecuted++
		}
	}

	headlines := o.fetchHeadlines(ctx)
	memories := o.memorySummaries()

	report.Decisions = o.analyzeWatchlist(ctx, snap, headlines, memories, fin)

	for i := range report.Decisions {
		rec := &report.Decisions[i]
		if rec.Status != DecisionError {
			report.SymbolsAnalyzed++
		}
		if rec.Decision != nil && rec.Decision.Outcome != voting.OutcomeNoConsensus {
			report.ConsensusReached++
		}
		if rec.Decision != nil &&
			(rec.Decision.Outcome == voting.OutcomeBuy || rec.Decision.Outcome == voting.OutcomeSell) {
			report.TradesProposed++
		}
		if rec.Status == DecisionExecuted {
			report.TradesExecuted++
		}
	}

	report.FinishedAt = time.Now()
	o.persist(report)
	o.notifier.NotifyCycle(report.CycleID, report.SymbolsAnalyzed,
		report.TradesProposed, report.TradesExecuted, dryRun)
	o.logger.Info("cycle finished",
		"cycle_id", report.CycleID,
		"analyzed", report.SymbolsAnalyzed,
		"proposed", report.TradesProposed,
		"executed", report.TradesExecuted,
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

// analyzeWatchlist fans symbols out over a bounded worker pool and collects
// one record per symbol in watchlist order.
func (o *Orchestrator) analyzeWatchlist(
	ctx context.Context,
	snap *broker.Snapshot,
	headlines map[string][]news.Headline,
	memories map[string]string,
	fin finisher,
) []DecisionRecord {
	symbols := o.cfg.Trading.Watchlist
	records := make([]DecisionRecord, len(symbols))

	sem := make(chan struct{}, o.cfg.Trading.SymbolConcurrency)
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("panic analyzing symbol", "symbol", symbol, "panic", fmt.Sprint(r))
					records[i] = DecisionRecord{
						Symbol: symbol,
						Status: DecisionError,
						Reason: fmt.Sprintf("panic: %v", r),
					}
				}
			}()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = o.analyzeSymbol(ctx, symbol, snap, headlines[symbol], memories, fin)
		}(i, symbol)
	}
	wg.Wait()
	return records
}

func (o *Orchestrator) analyzeSymbol(
	ctx context.Context,
	symbol string,
	snap *broker.Snapshot,
	headlines []news.Headline,
	memories map[string]string,
	fin finisher,
) DecisionRecord {
	rec := DecisionRecord{Symbol: symbol}

	quote, err := o.broker.Quote(ctx, symbol)
	if err != nil {
		o.logger.Error("quote failed", "symbol", symbol, "error", err)
		rec.Status = DecisionError
		rec.Reason = err.Error()
		return rec
	}

	titles := make([]string, 0, len(headlines))
	for _, h := range headlines {
		titles = append(titles, h.Title)
	}

	var positionQty float64
	if pos := snap.Position(symbol); pos != nil {
		positionQty = pos.Quantity
	}

	base := advisor.Context{
		Symbol:         symbol,
		LastPrice:      quote.LastPrice,
		Change1d:       quote.Change1d,
		Change1w:       quote.Change1w,
		Volume24h:      quote.Volume24h,
		SentimentScore: o.scorer.Score(ctx, symbol, titles),
		Equity:         snap.Equity,
		Cash:           snap.Cash,
		DrawdownPct:    o.gate.Drawdown(snap.Equity),
		PositionQty:    positionQty,
	}

	decision := o.protocol.RunVote(ctx, symbol, base, memories)
	rec.Decision = decision

	switch decision.Outcome {
	case voting.OutcomeHold:
		rec.Status = DecisionHold
		return rec
	case voting.OutcomeNoConsensus:
		rec.Status = DecisionNoConsensus
		return rec
	}

	assessment := o.gate.Evaluate(decision, snap, quote)
	rec.Risk = &assessment
	if !assessment.Approved {
		rec.Status = DecisionRejectedRisk
		rec.Reason = assessment.Reason
		return rec
	}
	rec.Quantity = assessment.AdjustedQuantity

	if decision.Outcome == voting.OutcomeSell {
		// Never sell more than we hold; no position means nothing to do.
		held := int64(positionQty)
		if held <= 0 {
			rec.Status = DecisionRejectedRisk
			rec.Reason = "no position to sell"
			return rec
		}
		if rec.Quantity > held {
			rec.Quantity = held
		}
	}

	fin.finish(ctx, &rec)
	return rec
}

func (o *Orchestrator) fetchHeadlines(ctx context.Context) map[string][]news.Headline {
	if !o.cfg.Sentiment.Enabled {
		return nil
	}
	all, err := o.news.FetchRecent(ctx)
	if err != nil {
		o.logger.Error("fetch news", "error", err)
		return nil
	}
	return news.FilterForSymbols(all, o.cfg.Trading.Watchlist)
}

func (o *Orchestrator) memorySummaries() map[string]string {
	out := make(map[string]string, len(o.agentNames))
	for _, name := range o.agentNames {
		out[name] = o.memory.Summary(name)
	}
	return out
}

func (o *Orchestrator) persist(r *Report) {
	decisions, err := json.Marshal(struct {
		Decisions   []DecisionRecord   `json:"decisions"`
		ForcedExits []ForcedExitRecord `json:"forced_exits,omitempty"`
	}{r.Decisions, r.ForcedExits})
	if err != nil {
		o.logger.Error("marshal cycle decisions", "error", err)
	}

	rec := &storage.CycleRecord{
		CycleID:          r.CycleID,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
		DryRun:           r.DryRun,
		Status:           r.Status,
		Watchlist:        strings.Join(r.Watchlist, ","),
		DecisionsJSON:    string(decisions),
		SymbolsAnalyzed:  r.SymbolsAnalyzed,
		TradesProposed:   r.TradesProposed,
		TradesExecuted:   r.TradesExecuted,
		ConsensusReached: r.ConsensusReached,
		Error:            r.Error,
	}
	if err := o.repo.SaveCycle(rec); err != nil {
		o.logger.Error("save cycle record", "cycle_id", r.CycleID, "error", err)
	}
}
