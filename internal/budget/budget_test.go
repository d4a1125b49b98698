package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

func newTestAllocator(shared float64, policy string) *Allocator {
	agents := []config.AgentConfig{
		{Name: "jordan", SoloBudget: 10_000},
		{Name: "bohlen", SoloBudget: 10_000},
		{Name: "frodo", SoloBudget: 10_000},
	}
	return NewAllocator(config.BudgetConfig{Shared: shared, ResetPolicy: policy},
		agents, logger.Discard())
}

func TestReserveSharedPool(t *testing.T) {
	a := newTestAllocator(50_000, config.ResetPerCycle)
	voters := []string{"jordan", "bohlen"}

	require.NoError(t, a.Reserve(voters, 45_000, true))

	// 45,000 committed of 50,000: 10,000 does not fit, 4,000 does.
	err := a.Reserve(voters, 10_000, true)
	require.ErrorIs(t, err, ErrBudgetExceeded)

	require.NoError(t, a.Reserve(voters, 4_000, true))
	assert.InDelta(t, 1_000, a.Remaining(), 1e-9)
}

func TestReserveSoloPool(t *testing.T) {
	a := newTestAllocator(50_000, config.ResetPerCycle)

	require.NoError(t, a.Reserve([]string{"jordan"}, 8_000, false))
	require.ErrorIs(t, a.Reserve([]string{"jordan"}, 3_000, false), ErrBudgetExceeded)

	// Solo usage does not consume the shared pool.
	assert.InDelta(t, 50_000, a.Remaining(), 1e-9)

	// Other agents have their own allowance.
	require.NoError(t, a.Reserve([]string{"bohlen"}, 3_000, false))

	require.ErrorIs(t, a.Reserve([]string{"stranger"}, 100, false), ErrBudgetExceeded)
}

func TestReleaseReturnsCapital(t *testing.T) {
	a := newTestAllocator(50_000, config.ResetPerCycle)
	voters := []string{"jordan", "frodo"}

	require.NoError(t, a.Reserve(voters, 45_000, true))
	a.Release(voters, 45_000, true)
	require.NoError(t, a.Reserve(voters, 50_000, true))
}

func TestBeginCyclePerCycleReset(t *testing.T) {
	a := newTestAllocator(50_000, config.ResetPerCycle)

	require.NoError(t, a.Reserve([]string{"jordan"}, 45_000, true))
	a.BeginCycle()
	// The ledger is wiped on every cycle boundary.
	require.NoError(t, a.Reserve([]string{"jordan"}, 45_000, true))
}

func TestBeginCyclePerDayReset(t *testing.T) {
	a := newTestAllocator(50_000, config.ResetPerDay)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	a.BeginCycle()
	require.NoError(t, a.Reserve([]string{"jordan"}, 45_000, true))

	// Next cycle, same day: commitments carry forward.
	now = now.Add(time.Hour)
	a.BeginCycle()
	require.ErrorIs(t, a.Reserve([]string{"jordan"}, 10_000, true), ErrBudgetExceeded)

	// First cycle of the next day starts fresh.
	now = now.Add(24 * time.Hour)
	a.BeginCycle()
	require.NoError(t, a.Reserve([]string{"jordan"}, 10_000, true))
}

func TestSetCapsPreservesCommitments(t *testing.T) {
	a := newTestAllocator(50_000, config.ResetPerCycle)
	require.NoError(t, a.Reserve([]string{"jordan"}, 30_000, true))

	a.SetCaps(35_000, map[string]float64{"jordan": 5_000})
	assert.InDelta(t, 5_000, a.Remaining(), 1e-9)
	require.ErrorIs(t, a.Reserve([]string{"jordan"}, 6_000, true), ErrBudgetExceeded)
}

func TestCapSum(t *testing.T) {
	a := newTestAllocator(30_000, config.ResetPerCycle)
	assert.InDelta(t, 60_000, a.CapSum(), 1e-9)
}
