package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/camuig/quorum-trader/internal/orchestrator"
	"github.com/camuig/quorum-trader/internal/scheduler"
	"github.com/camuig/quorum-trader/internal/storage"
)

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req struct {
		DryRun bool `json:"dry_run"`
	}
	if r.Body != nil {
		// Empty body means a live run.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	report, err := s.orch.RunCycle(r.Context(), req.DryRun)
	if errors.Is(err, orchestrator.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, "a cycle is already running")
		return
	}
	if err != nil {
		s.logger.Error("manual cycle failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type agentStatus struct {
	Agent      string   `json:"agent"`
	Persona    string   `json:"persona"`
	SoloBudget float64  `json:"solo_budget"`
	TradeCount int64    `json:"trade_count"`
	Wins       int64    `json:"wins"`
	WinRate    float64  `json:"win_rate"`
	TotalPnL   float64  `json:"total_pnl"`
	Lessons    []string `json:"lessons,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	agents := make([]agentStatus, 0, len(s.config.Agents))
	for _, a := range s.config.Agents {
		st := agentStatus{Agent: a.Name, Persona: a.Persona, SoloBudget: a.SoloBudget}
		if stats, err := s.repo.GetAgentStats(a.Name); err == nil {
			st.TradeCount = stats.TradeCount
			st.Wins = stats.Wins
			st.WinRate = stats.WinRate
			st.TotalPnL = stats.TotalPnL
		}
		st.Lessons = s.memory.Lessons(a.Name)
		agents = append(agents, st)
	}

	resp := map[string]any{
		"mode":   s.mode(),
		"agents": agents,
		"market": s.broker.MarketStatus(),
	}
	if snap, err := s.broker.PortfolioSnapshot(r.Context()); err == nil {
		resp["portfolio"] = snap
	}
	if cycles, err := s.repo.GetRecentCycles(5); err == nil {
		resp["recent_cycles"] = cycleSummaries(cycles)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	board := make([]agentStatus, 0, len(s.config.Agents))
	for _, a := range s.config.Agents {
		st := agentStatus{Agent: a.Name, Persona: a.Persona, SoloBudget: a.SoloBudget}
		if stats, err := s.repo.GetAgentStats(a.Name); err == nil {
			st.TradeCount = stats.TradeCount
			st.Wins = stats.Wins
			st.WinRate = stats.WinRate
			st.TotalPnL = stats.TotalPnL
		}
		board = append(board, st)
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].TotalPnL > board[j].TotalPnL
	})

	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": board})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, s.broker.MarketStatus())
}

func (s *Server) handleAutopilot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		state, err := s.sched.Status()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, state)

	case http.MethodPost:
		var req struct {
			Enabled         bool               `json:"enabled"`
			IntervalMinutes int                `json:"interval_minutes"`
			MaxTradePct     float64            `json:"max_trade_pct"`
			SharedBudget    float64            `json:"shared_budget"`
			SoloBudgets     map[string]float64 `json:"solo_budgets"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		state, err := s.sched.Configure(r.Context(), req.Enabled, req.IntervalMinutes,
			req.MaxTradePct, req.SharedBudget, req.SoloBudgets)
		var verr *scheduler.ConfigValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, state)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

func (s *Server) mode() string {
	if s.config.Broker.Driver == "paper" {
		return "PAPER"
	}
	if s.config.IsSandbox() {
		return "SANDBOX"
	}
	return "LIVE"
}

type cycleSummary struct {
	CycleID        string `json:"cycle_id"`
	Status         string `json:"status"`
	DryRun         bool   `json:"dry_run"`
	TradesExecuted int    `json:"trades_executed"`
	StartedAt      string `json:"started_at"`
}

func cycleSummaries(cycles []storage.CycleRecord) []cycleSummary {
	out := make([]cycleSummary, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, cycleSummary{
			CycleID:        c.CycleID,
			Status:         c.Status,
			DryRun:         c.DryRun,
			TradesExecuted: c.TradesExecuted,
			StartedAt:      c.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
