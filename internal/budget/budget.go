// Package budget keeps the shared and per-agent capital ledgers that cap how
// much the advisors may commit per cycle.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

var ErrBudgetExceeded = errors.New("budget exceeded")

// Allocator tracks committed capital against the shared pool and each
// agent's solo allowance. Reservations only apply to BUY orders: a SELL
// releases capital, it never consumes budget.
type Allocator struct {
	logger *logger.Logger

	mu          sync.Mutex
	sharedCap   float64
	soloCaps    map[string]float64
	sharedUsed  float64
	soloUsed    map[string]float64
	resetPolicy string
	lastReset   time.Time
	now         func() time.Time
}

func NewAllocator(cfg config.BudgetConfig, agents []config.AgentConfig, log *logger.Logger) *Allocator {
	solo := make(map[string]float64, len(agents))
	for _, a := range agents {
		solo[a.Name] = a.SoloBudget
	}
	return &Allocator{
		logger:      log,
		sharedCap:   cfg.Shared,
		soloCaps:    solo,
		soloUsed:    make(map[string]float64),
		resetPolicy: cfg.ResetPolicy,
		now:         time.Now,
	}
}

// BeginCycle applies the reset policy before a cycle starts committing
// capital. per_cycle wipes the ledger every time; per_day only when the
// calendar day has rolled over since the last reset.
func (a *Allocator) BeginCycle() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	switch a.resetPolicy {
	case config.ResetPerDay:
		if sameDay(a.lastReset, now) {
			return
		}
	}
	a.sharedUsed = 0
	a.soloUsed = make(map[string]float64)
	a.lastReset = now
}

// Reserve commits tradeValue against a ledger. Consensus trades (shared =
// true) draw on the shared pool; a unilateral trade draws on the solo
// allowance of each named agent. Nothing is committed on rejection.
func (a *Allocator) Reserve(agents []string, tradeValue float64, shared bool) error {
	if tradeValue <= 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if shared {
		if a.sharedUsed+tradeValue > a.sharedCap {
			return fmt.Errorf("%w: shared pool %.0f committed of %.0f, need %.0f more",
				ErrBudgetExceeded, a.sharedUsed, a.sharedCap, tradeValue)
		}
		a.sharedUsed += tradeValue
		return nil
	}

	for _, name := range agents {
		limit, ok := a.soloCaps[name]
		if !ok {
			return fmt.Errorf("%w: unknown agent %s", ErrBudgetExceeded, name)
		}
		if a.soloUsed[name]+tradeValue > limit {
			return fmt.Errorf("%w: agent %s committed %.0f of %.0f, need %.0f more",
				ErrBudgetExceeded, name, a.soloUsed[name], limit, tradeValue)
		}
	}
	for _, name := range agents {
		a.soloUsed[name] += tradeValue
	}
	return nil
}

// Release returns capital committed by a matching Reserve, e.g. when a
// downstream broker rejection voids the reservation.
func (a *Allocator) Release(agents []string, tradeValue float64, shared bool) {
	if tradeValue <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if shared {
		a.sharedUsed -= tradeValue
		if a.sharedUsed < 0 {
			a.sharedUsed = 0
		}
		return
	}
	for _, name := range agents {
		a.soloUsed[name] -= tradeValue
		if a.soloUsed[name] < 0 {
			a.soloUsed[name] = 0
		}
	}
}

// CapSum is the total of every configured cap. The allocator surfaces this
// for configuration-time validation against portfolio equity but does not
// enforce it itself.
func (a *Allocator) CapSum() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	sum := a.sharedCap
	for _, v := range a.soloCaps {
		sum += v
	}
	return sum
}

// Remaining reports free headroom in the shared pool.
func (a *Allocator) Remaining() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sharedCap - a.sharedUsed
}

// SetCaps swaps in new limits, used when autopilot configuration changes the
// budgets at runtime. Committed amounts are preserved.
func (a *Allocator) SetCaps(shared float64, solo map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sharedCap = shared
	a.soloCaps = make(map[string]float64, len(solo))
	for k, v := range solo {
		a.soloCaps[k] = v
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
