package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/quorum-trader/internal/advisor"
	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/budget"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/memory"
	"github.com/camuig/quorum-trader/internal/news"
	"github.com/camuig/quorum-trader/internal/orchestrator"
	"github.com/camuig/quorum-trader/internal/risk"
	"github.com/camuig/quorum-trader/internal/scheduler"
	"github.com/camuig/quorum-trader/internal/sentiment"
	"github.com/camuig/quorum-trader/internal/storage"
	"github.com/camuig/quorum-trader/internal/telegram"
	"github.com/camuig/quorum-trader/internal/voting"
)

type fakeBroker struct{}

func (fakeBroker) IsMarketOpen() bool { return true }

func (fakeBroker) MarketStatus() broker.MarketStatus {
	return broker.MarketStatus{IsOpen: true}
}

func (fakeBroker) Quote(_ context.Context, symbol string) (*broker.Quote, error) {
	return &broker.Quote{Symbol: symbol, LastPrice: 280, Volatility: 0.01}, nil
}

func (fakeBroker) SubmitOrder(_ context.Context, symbol string, _ broker.Side, qty int64) (*broker.OrderResult, error) {
	return &broker.OrderResult{OrderID: "ord-" + symbol, Accepted: true, FillPrice: 280, FilledQty: qty}, nil
}

func (fakeBroker) PortfolioSnapshot(context.Context) (*broker.Snapshot, error) {
	return &broker.Snapshot{Equity: 100_000, Cash: 100_000}, nil
}

func (fakeBroker) Stop() error { return nil }

type holdAdvisor struct{ name string }

func (h *holdAdvisor) Name() string { return h.name }

func (h *holdAdvisor) Propose(_ context.Context, c advisor.Context, round int) (*advisor.Proposal, error) {
	return &advisor.Proposal{
		Agent: h.name, Symbol: c.Symbol, Action: advisor.ActionHold,
		Confidence: 0.5, Round: round,
	}, nil
}

func newTestServer(t *testing.T) (*Server, *storage.Repository) {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{
		Agents: []config.AgentConfig{
			{Name: "jordan", Persona: "momentum", SoloBudget: 10_000},
			{Name: "bohlen", Persona: "protector", SoloBudget: 10_000},
			{Name: "frodo", Persona: "patient", SoloBudget: 10_000},
		},
		Trading: config.TradingConfig{
			Watchlist:         []string{"SBER"},
			IntervalMinutes:   60,
			MaxTradePct:       10,
			SymbolConcurrency: 2,
		},
		Risk:   config.RiskConfig{MaxDrawdownPct: 20, MaxDailyLossPct: 5, MaxSectorExposurePct: 100, EmergencyStopLossPct: 15},
		Budget: config.BudgetConfig{Shared: 30_000, ResetPolicy: config.ResetPerCycle},
	}
	cfg.Broker.Driver = "paper"

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	repo := storage.NewRepository(db)

	fb := fakeBroker{}
	advisors := []advisor.Advisor{
		&holdAdvisor{name: "jordan"}, &holdAdvisor{name: "bohlen"}, &holdAdvisor{name: "frodo"},
	}
	allocator := budget.NewAllocator(cfg.Budget, cfg.Agents, log)
	gate := risk.NewGate(cfg.Risk, cfg.Trading.MaxTradePct, log)
	mem := memory.NewManager(repo, log)
	orch := orchestrator.New(cfg, fb,
		voting.NewProtocol(advisors, time.Second, log),
		gate,
		allocator, repo, mem,
		sentiment.Neutral{}, news.NewClient(log), telegram.NewNotifier(cfg, log), log,
	)
	sched, err := scheduler.NewScheduler(orch, fb, gate, allocator, repo, telegram.NewNotifier(cfg, log), cfg, log)
	require.NoError(t, err)

	return NewServer(orch, sched, fb, repo, mem, cfg, log), repo
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	res := w.Result()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(raw)
}

func TestRunCycleEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	res, body := do(t, s, http.MethodPost, "/api/cycle/run", `{"dry_run":true}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var report orchestrator.Report
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	assert.True(t, report.DryRun)
	assert.Zero(t, report.TradesExecuted)
	assert.NotEmpty(t, report.CycleID)

	res, _ = do(t, s, http.MethodGet, "/api/cycle/run", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestStatusAndLeaderboardIdempotent(t *testing.T) {
	s, _ := newTestRepoWithStats(t)

	_, first := do(t, s, http.MethodGet, "/api/leaderboard", "")
	_, second := do(t, s, http.MethodGet, "/api/leaderboard", "")
	assert.JSONEq(t, first, second)

	res, body := do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"mode":"PAPER"`)
}

func newTestRepoWithStats(t *testing.T) (*Server, *storage.Repository) {
	t.Helper()
	s, repo := newTestServer(t)
	now := time.Now()
	for _, rec := range []storage.AgentTradeRecord{
		{Agent: "bohlen", Symbol: "SBER", Action: "BUY", Outcome: "win", PnL: 900, ClosedAt: &now},
		{Agent: "jordan", Symbol: "SBER", Action: "BUY", Outcome: "loss", PnL: -100, ClosedAt: &now},
	} {
		r := rec
		require.NoError(t, repo.AppendAgentTrade(&r))
	}
	return s, repo
}

func TestLeaderboardRankedByPnL(t *testing.T) {
	s, _ := newTestRepoWithStats(t)

	res, body := do(t, s, http.MethodGet, "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp struct {
		Leaderboard []struct {
			Agent    string  `json:"agent"`
			TotalPnL float64 `json:"total_pnl"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Leaderboard, 3)
	assert.Equal(t, "bohlen", resp.Leaderboard[0].Agent)
	assert.InDelta(t, 900, resp.Leaderboard[0].TotalPnL, 1e-9)
}

func TestMarketEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	res, body := do(t, s, http.MethodGet, "/api/market", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"is_open":true`)
}

func TestAutopilotEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	res, body := do(t, s, http.MethodGet, "/api/autopilot", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"enabled":false`)

	res, _ = do(t, s, http.MethodPost, "/api/autopilot",
		`{"enabled":true,"interval_minutes":30,"max_trade_pct":10,"shared_budget":30000,
		  "solo_budgets":{"jordan":10000,"bohlen":10000,"frodo":10000}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = do(t, s, http.MethodGet, "/api/autopilot", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"enabled":true`)
	assert.Contains(t, body, `"interval_minutes":30`)

	// Caps beyond equity never make it into the store.
	res, body = do(t, s, http.MethodPost, "/api/autopilot",
		`{"enabled":true,"interval_minutes":30,"max_trade_pct":10,"shared_budget":900000,
		  "solo_budgets":{"jordan":10000}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "exceeds portfolio equity")
}
