package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

func newTestClient(cash float64) *Client {
	cfg := &config.Config{}
	cfg.Broker.PaperCash = cash
	return NewClient(cfg, logger.Discard())
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	c := newTestClient(100_000)
	ctx := context.Background()

	res, err := c.SubmitOrder(ctx, "SBER", broker.SideBuy, 10)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, int64(10), res.FilledQty)

	snap, err := c.PortfolioSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "SBER", snap.Positions[0].Symbol)
	assert.Equal(t, 10.0, snap.Positions[0].Quantity)
	// Cash plus position value still accounts for the full equity.
	assert.InDelta(t, 100_000, snap.Equity, 100_000*0.05)

	res, err = c.SubmitOrder(ctx, "SBER", broker.SideSell, 10)
	require.NoError(t, err)
	require.True(t, res.Accepted)

	snap, err = c.PortfolioSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)
}

func TestBuyRejectedWithoutCash(t *testing.T) {
	c := newTestClient(100)
	res, err := c.SubmitOrder(context.Background(), "LKOH", broker.SideBuy, 10)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}

func TestSellRejectedWithoutPosition(t *testing.T) {
	c := newTestClient(100_000)
	res, err := c.SubmitOrder(context.Background(), "GAZP", broker.SideSell, 1)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}

func TestSubmitOrderValidation(t *testing.T) {
	c := newTestClient(100_000)
	_, err := c.SubmitOrder(context.Background(), "SBER", broker.SideBuy, 0)
	require.Error(t, err)

	_, err = c.SubmitOrder(context.Background(), "SBER", broker.Side("LIMIT"), 1)
	require.Error(t, err)
}

func TestQuoteWalksAroundBasePrice(t *testing.T) {
	c := newTestClient(100_000)
	q, err := c.Quote(context.Background(), "SBER")
	require.NoError(t, err)

	assert.InDelta(t, 280, q.LastPrice, 280*0.02)
	assert.Greater(t, q.Volatility, 0.0)

	// Unknown symbols get the default base.
	q, err = c.Quote(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.InDelta(t, 100, q.LastPrice, 100*0.02)
}

func TestAveragePriceAccumulates(t *testing.T) {
	c := newTestClient(1_000_000)
	ctx := context.Background()

	first, err := c.SubmitOrder(ctx, "GAZP", broker.SideBuy, 10)
	require.NoError(t, err)
	second, err := c.SubmitOrder(ctx, "GAZP", broker.SideBuy, 30)
	require.NoError(t, err)

	snap, err := c.PortfolioSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Positions, 1)

	want := (first.FillPrice*10 + second.FillPrice*30) / 40
	assert.InDelta(t, want, snap.Positions[0].AvgPrice, 1e-9)
	assert.Equal(t, 40.0, snap.Positions[0].Quantity)
}
