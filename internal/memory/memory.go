// Package memory keeps each agent's trade history and turns it into short
// lessons that flow back into future prompts. Written only after confirmed
// broker fills; read-only during context assembly.
package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/storage"
)

const recentWindow = 20

type Manager struct {
	repo   *storage.Repository
	logger *logger.Logger
}

func NewManager(repo *storage.Repository, log *logger.Logger) *Manager {
	return &Manager{repo: repo, logger: log}
}

// RecordEntry appends a BUY the agent voted for. Outcome stays open until the
// position is closed.
func (m *Manager) RecordEntry(agent, symbol string, quantity int64, price, confidence float64) error {
	rec := &storage.AgentTradeRecord{
		Agent:      agent,
		Symbol:     symbol,
		Action:     "BUY",
		Quantity:   quantity,
		EntryPrice: price,
		Confidence: confidence,
		Outcome:    "open",
	}
	if err := m.repo.AppendAgentTrade(rec); err != nil {
		return fmt.Errorf("record entry for %s: %w", agent, err)
	}
	return nil
}

// RecordExit closes the agent's open records for the symbol at the given
// price, fixing each record's P&L and win/loss outcome.
func (m *Manager) RecordExit(agent, symbol string, price float64) error {
	open, err := m.repo.GetOpenAgentTrades(agent, symbol)
	if err != nil {
		return fmt.Errorf("load open trades for %s: %w", agent, err)
	}

	now := time.Now()
	for i := range open {
		rec := &open[i]
		rec.ExitPrice = price
		rec.PnL = (price - rec.EntryPrice) * float64(rec.Quantity)
		if rec.PnL > 0 {
			rec.Outcome = "win"
		} else {
			rec.Outcome = "loss"
		}
		rec.ClosedAt = &now

		if err := m.repo.UpdateAgentTrade(rec); err != nil {
			return fmt.Errorf("close trade %d for %s: %w", rec.ID, agent, err)
		}
	}
	return nil
}

func (m *Manager) Stats(agent string) (*storage.AgentStats, error) {
	return m.repo.GetAgentStats(agent)
}

// Lessons derives short behavioral notes from the agent's recent closed
// trades: overall win rate, overconfidence, per-symbol strengths.
func (m *Manager) Lessons(agent string) []string {
	recent, err := m.repo.GetAgentTrades(agent, recentWindow)
	if err != nil {
		m.logger.Error("load agent trades for lessons", "agent", agent, "error", err)
		return nil
	}

	var closed []storage.AgentTradeRecord
	for _, r := range recent {
		if r.Outcome != "open" {
			closed = append(closed, r)
		}
	}
	if len(closed) == 0 {
		return nil
	}

	var lessons []string

	wins := 0
	for _, r := range closed {
		if r.Outcome == "win" {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(closed))
	if winRate < 0.4 {
		lessons = append(lessons, fmt.Sprintf("Low win rate recently (%.0f%%) — be more cautious.", winRate*100))
	} else if winRate > 0.6 {
		lessons = append(lessons, fmt.Sprintf("Good win rate recently (%.0f%%) — the approach is working.", winRate*100))
	}

	// High confidence that does not pay off.
	var highConf, highConfWins int
	for _, r := range closed {
		if r.Confidence > 0.8 {
			highConf++
			if r.Outcome == "win" {
				highConfWins++
			}
		}
	}
	if highConf >= 3 && float64(highConfWins)/float64(highConf) < 0.5 {
		lessons = append(lessons, "High confidence has not correlated with success — recalibrate.")
	}

	// Per-symbol patterns with at least 3 closed trades.
	type perf struct{ wins, total int }
	bySymbol := make(map[string]*perf)
	for _, r := range closed {
		p, ok := bySymbol[r.Symbol]
		if !ok {
			p = &perf{}
			bySymbol[r.Symbol] = p
		}
		p.total++
		if r.Outcome == "win" {
			p.wins++
		}
	}
	for symbol, p := range bySymbol {
		if p.total < 3 {
			continue
		}
		rate := float64(p.wins) / float64(p.total)
		if rate > 0.7 {
			lessons = append(lessons, fmt.Sprintf("Strong record in %s (%.0f%% wins).", symbol, rate*100))
		} else if rate < 0.3 {
			lessons = append(lessons, fmt.Sprintf("Weak record in %s (%.0f%% wins) — avoid.", symbol, rate*100))
		}
	}

	return lessons
}

// Summary is the compact stats-plus-lessons block injected into round-1
// prompts.
func (m *Manager) Summary(agent string) string {
	stats, err := m.Stats(agent)
	if err != nil {
		m.logger.Error("load agent stats for summary", "agent", agent, "error", err)
		return ""
	}
	if stats.TradeCount == 0 {
		return "No closed trades yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Closed trades: %d | Win rate: %.0f%% | Total P&L: %+.2f",
		stats.TradeCount, stats.WinRate*100, stats.TotalPnL)

	if lessons := m.Lessons(agent); len(lessons) > 0 {
		sb.WriteString("\nLessons:")
		for _, l := range lessons {
			sb.WriteString("\n- ")
			sb.WriteString(l)
		}
	}
	return sb.String()
}
