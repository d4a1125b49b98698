package tinkoff

import (
	"context"
	"fmt"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/quorum-trader/internal/broker"
)

func (c *Client) PortfolioSnapshot(ctx context.Context) (*broker.Snapshot, error) {
	accountID := c.AccountID()
	currency := pb.PortfolioRequest_RUB

	var resp interface {
		GetTotalAmountPortfolio() *pb.MoneyValue
		GetTotalAmountCurrencies() *pb.MoneyValue
		GetPositions() []*pb.PortfolioPosition
	}

	if c.cfg.IsSandbox() {
		sandbox := c.client.NewSandboxServiceClient()
		r, err := sandbox.GetSandboxPortfolio(accountID, currency)
		if err != nil {
			return nil, fmt.Errorf("get sandbox portfolio: %w", err)
		}
		resp = r.PortfolioResponse
	} else {
		ops := c.client.NewOperationsServiceClient()
		r, err := ops.GetPortfolio(accountID, currency)
		if err != nil {
			return nil, fmt.Errorf("get portfolio: %w", err)
		}
		resp = r.PortfolioResponse
	}

	snap := &broker.Snapshot{}
	if total := resp.GetTotalAmountPortfolio(); total != nil {
		snap.Equity = total.ToFloat()
	}
	if currencies := resp.GetTotalAmountCurrencies(); currencies != nil {
		snap.Cash = currencies.ToFloat()
	}

	for _, pos := range resp.GetPositions() {
		if pos.GetInstrumentType() == "currency" {
			continue
		}

		p := broker.Position{}
		if ticker, err := c.tickerByUID(pos.GetInstrumentUid()); err == nil {
			p.Symbol = ticker
		}
		if q := pos.GetQuantity(); q != nil {
			p.Quantity = q.ToFloat()
		}
		if ap := pos.GetAveragePositionPrice(); ap != nil {
			p.AvgPrice = ap.ToFloat()
		}
		if cp := pos.GetCurrentPrice(); cp != nil {
			p.CurrentPrice = cp.ToFloat()
		}
		if ey := pos.GetExpectedYield(); ey != nil {
			p.UnrealizedPnL = ey.ToFloat()
		}
		if cost := p.AvgPrice * p.Quantity; cost > 0 {
			p.UnrealizedPnLPct = p.UnrealizedPnL / cost * 100
		}

		snap.Positions = append(snap.Positions, p)
	}

	return snap, nil
}
