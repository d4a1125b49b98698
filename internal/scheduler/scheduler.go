// Package scheduler owns the autopilot: a background loop that fires trading
// cycles at a configured interval, with persisted run metadata and a
// configure operation guarded by budget validation.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/budget"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/orchestrator"
	"github.com/camuig/quorum-trader/internal/risk"
	"github.com/camuig/quorum-trader/internal/storage"
	"github.com/camuig/quorum-trader/internal/telegram"
)

// ConfigValidationError rejects a configure call before anything is
// persisted.
type ConfigValidationError struct {
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return "invalid autopilot config: " + e.Reason
}

type Scheduler struct {
	orch      *orchestrator.Orchestrator
	broker    broker.Broker
	gate      *risk.Gate
	allocator *budget.Allocator
	repo      *storage.Repository
	notifier  *telegram.Notifier
	config    *config.Config
	logger    *logger.Logger

	mu       sync.Mutex
	enabled  bool
	interval time.Duration
	resetCh  chan time.Duration
}

func NewScheduler(
	orch *orchestrator.Orchestrator,
	b broker.Broker,
	gate *risk.Gate,
	allocator *budget.Allocator,
	repo *storage.Repository,
	notifier *telegram.Notifier,
	cfg *config.Config,
	log *logger.Logger,
) (*Scheduler, error) {
	s := &Scheduler{
		orch:      orch,
		broker:    b,
		gate:      gate,
		allocator: allocator,
		repo:      repo,
		notifier:  notifier,
		config:    cfg,
		logger:    log,
		resetCh:   make(chan time.Duration, 1),
	}

	state, err := repo.LoadAutopilotConfig()
	if err != nil {
		return nil, fmt.Errorf("load autopilot config: %w", err)
	}
	if state == nil {
		// First start: seed the singleton from the static configuration.
		state = &storage.AutopilotConfig{
			Enabled:         false,
			IntervalMinutes: cfg.Trading.IntervalMinutes,
			MaxTradePct:     cfg.Trading.MaxTradePct,
			SharedBudget:    cfg.Budget.Shared,
		}
		solo := make(map[string]float64, len(cfg.Agents))
		for _, a := range cfg.Agents {
			solo[a.Name] = a.SoloBudget
		}
		raw, _ := json.Marshal(solo)
		state.SoloBudgetsJSON = string(raw)
		if err := repo.SaveAutopilotConfig(state); err != nil {
			return nil, fmt.Errorf("seed autopilot config: %w", err)
		}
	} else {
		// Restart: the persisted settings override the static YAML, so push
		// them back into the gate and the budget ledger.
		if err := s.apply(state); err != nil {
			return nil, fmt.Errorf("apply persisted autopilot config: %w", err)
		}
	}

	s.enabled = state.Enabled
	s.interval = time.Duration(state.IntervalMinutes) * time.Minute
	return s, nil
}

// apply pushes a persisted autopilot configuration into the live gate and
// allocator.
func (s *Scheduler) apply(state *storage.AutopilotConfig) error {
	solo := make(map[string]float64)
	if state.SoloBudgetsJSON != "" {
		if err := json.Unmarshal([]byte(state.SoloBudgetsJSON), &solo); err != nil {
			return fmt.Errorf("unmarshal solo budgets: %w", err)
		}
	}
	s.allocator.SetCaps(state.SharedBudget, solo)
	if state.MaxTradePct > 0 {
		s.gate.SetMaxTradePct(state.MaxTradePct)
	}
	return nil
}

// Run blocks until ctx is cancelled, firing one cycle per interval. A firing
// that finds a cycle still in flight is skipped entirely: next_run is
// recomputed, last_run is left alone.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("autopilot loop started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("autopilot loop stopped")
			return
		case newInterval := <-s.resetCh:
			ticker.Reset(newInterval)
			s.logger.Info("autopilot interval changed", "interval", newInterval.String())
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in autopilot cycle", "panic", fmt.Sprint(r))
			s.notifier.NotifyError("autopilot panic", fmt.Errorf("%v", r))
		}
	}()

	s.mu.Lock()
	enabled := s.enabled
	interval := s.interval
	s.mu.Unlock()

	if !enabled {
		return
	}

	next := time.Now().Add(interval)
	started := time.Now()

	_, err := s.orch.RunCycle(ctx, false)
	switch {
	case errors.Is(err, orchestrator.ErrCycleInProgress):
		// Skip the firing, never stack cycles. last_run stays untouched.
		s.logger.Info("cycle still running, skipping autopilot firing")
		s.touch(nil, &next)
		return
	case err != nil:
		s.logger.Error("autopilot cycle failed", "error", err)
	}
	s.touch(&started, &next)
}

func (s *Scheduler) touch(lastRun, nextRun *time.Time) {
	if err := s.repo.TouchAutopilotRuns(lastRun, nextRun); err != nil {
		s.logger.Error("persist autopilot run metadata", "error", err)
	}
}

// Configure validates and persists a new autopilot configuration, then
// applies it to the running loop and the budget ledger caps. The sum of all
// budget caps may not exceed current portfolio equity.
func (s *Scheduler) Configure(ctx context.Context, enabled bool, intervalMinutes int, maxTradePct, sharedBudget float64, soloBudgets map[string]float64) (*storage.AutopilotConfig, error) {
	if intervalMinutes < 1 {
		return nil, &ConfigValidationError{Reason: "interval must be at least 1 minute"}
	}
	if maxTradePct <= 0 || maxTradePct > 100 {
		return nil, &ConfigValidationError{Reason: "max trade percentage must be in (0, 100]"}
	}
	if sharedBudget <= 0 {
		return nil, &ConfigValidationError{Reason: "shared budget must be positive"}
	}

	capSum := sharedBudget
	for name, v := range soloBudgets {
		if v <= 0 {
			return nil, &ConfigValidationError{Reason: fmt.Sprintf("solo budget for %s must be positive", name)}
		}
		if !s.knownAgent(name) {
			return nil, &ConfigValidationError{Reason: "unknown agent " + name}
		}
		capSum += v
	}

	snap, err := s.broker.PortfolioSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("portfolio snapshot for budget validation: %w", err)
	}
	if capSum > snap.Equity {
		return nil, &ConfigValidationError{
			Reason: fmt.Sprintf("budget caps sum %.0f exceeds portfolio equity %.0f", capSum, snap.Equity),
		}
	}

	state, err := s.repo.LoadAutopilotConfig()
	if err != nil {
		return nil, fmt.Errorf("load autopilot config: %w", err)
	}
	if state == nil {
		state = &storage.AutopilotConfig{}
	}

	raw, err := json.Marshal(soloBudgets)
	if err != nil {
		return nil, fmt.Errorf("marshal solo budgets: %w", err)
	}

	state.Enabled = enabled
	state.IntervalMinutes = intervalMinutes
	state.MaxTradePct = maxTradePct
	state.SharedBudget = sharedBudget
	state.SoloBudgetsJSON = string(raw)
	if err := s.repo.SaveAutopilotConfig(state); err != nil {
		return nil, fmt.Errorf("save autopilot config: %w", err)
	}

	s.allocator.SetCaps(sharedBudget, soloBudgets)
	s.gate.SetMaxTradePct(maxTradePct)

	s.mu.Lock()
	s.enabled = enabled
	interval := time.Duration(intervalMinutes) * time.Minute
	changed := interval != s.interval
	s.interval = interval
	s.mu.Unlock()

	if changed {
		select {
		case s.resetCh <- interval:
		default:
		}
	}

	s.logger.Info("autopilot reconfigured",
		"enabled", enabled, "interval_minutes", intervalMinutes,
		"shared_budget", sharedBudget)
	return state, nil
}

// Status returns the persisted autopilot singleton.
func (s *Scheduler) Status() (*storage.AutopilotConfig, error) {
	state, err := s.repo.LoadAutopilotConfig()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &storage.AutopilotConfig{}, nil
	}
	return state, nil
}

func (s *Scheduler) knownAgent(name string) bool {
	for _, a := range s.config.Agents {
		if a.Name == name {
			return true
		}
	}
	return false
}
