// Package paper is an in-memory broker driver for simulated accounts. Prices
// follow a small random walk around seeded base levels, orders always fill at
// the current walk price.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

var basePrices = map[string]float64{
	"SBER": 280,
	"GAZP": 130,
	"LKOH": 7100,
	"YDEX": 4200,
	"ROSN": 530,
	"GMKN": 120,
	"NVTK": 1050,
	"MTSS": 220,
}

const defaultBasePrice = 100

type position struct {
	quantity int64
	avgPrice float64
}

type Client struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*position
	prices    map[string]float64
	rng       *rand.Rand
	clock     *broker.SessionClock
	log       *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		cash:      cfg.Broker.PaperCash,
		positions: make(map[string]*position),
		prices:    make(map[string]float64),
		rng:       rand.New(rand.NewSource(rand.Int63())),
		clock:     broker.NewSessionClock(cfg.ExchangeLocation()),
		log:       log,
	}
}

func (c *Client) IsMarketOpen() bool {
	return c.clock.IsOpen()
}

func (c *Client) MarketStatus() broker.MarketStatus {
	return c.clock.Status()
}

func (c *Client) Quote(ctx context.Context, symbol string) (*broker.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	price := c.stepPriceLocked(symbol)
	return &broker.Quote{
		Symbol:     symbol,
		LastPrice:  price,
		Change1d:   c.rng.Float64()*4 - 2,
		Change1w:   c.rng.Float64()*8 - 4,
		Volume24h:  float64(100000 + c.rng.Intn(900000)),
		Volatility: 0.005 + c.rng.Float64()*0.01,
	}, nil
}

func (c *Client) SubmitOrder(ctx context.Context, symbol string, side broker.Side, quantity int64) (*broker.OrderResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", quantity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	price := c.currentPriceLocked(symbol)
	value := price * float64(quantity)

	switch side {
	case broker.SideBuy:
		if value > c.cash {
			return &broker.OrderResult{Accepted: false}, nil
		}
		c.cash -= value
		pos, ok := c.positions[symbol]
		if !ok {
			pos = &position{}
			c.positions[symbol] = pos
		}
		total := pos.avgPrice*float64(pos.quantity) + value
		pos.quantity += quantity
		pos.avgPrice = total / float64(pos.quantity)

	case broker.SideSell:
		pos, ok := c.positions[symbol]
		if !ok || pos.quantity < quantity {
			return &broker.OrderResult{Accepted: false}, nil
		}
		c.cash += value
		pos.quantity -= quantity
		if pos.quantity == 0 {
			delete(c.positions, symbol)
		}

	default:
		return nil, fmt.Errorf("unknown order side %q", side)
	}

	c.log.Info("paper order filled", "symbol", symbol, "side", side, "quantity", quantity, "price", price)

	return &broker.OrderResult{
		OrderID:   uuid.NewString(),
		Accepted:  true,
		FillPrice: price,
		FilledQty: quantity,
	}, nil
}

func (c *Client) PortfolioSnapshot(ctx context.Context) (*broker.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &broker.Snapshot{Cash: c.cash, Equity: c.cash}
	for symbol, pos := range c.positions {
		price := c.currentPriceLocked(symbol)
		value := price * float64(pos.quantity)
		cost := pos.avgPrice * float64(pos.quantity)

		p := broker.Position{
			Symbol:        symbol,
			Quantity:      float64(pos.quantity),
			AvgPrice:      pos.avgPrice,
			CurrentPrice:  price,
			UnrealizedPnL: value - cost,
		}
		if cost > 0 {
			p.UnrealizedPnLPct = (value - cost) / cost * 100
		}

		snap.Positions = append(snap.Positions, p)
		snap.Equity += value
	}
	return snap, nil
}

func (c *Client) Stop() error {
	return nil
}

func (c *Client) currentPriceLocked(symbol string) float64 {
	if price, ok := c.prices[symbol]; ok {
		return price
	}
	return c.stepPriceLocked(symbol)
}

func (c *Client) stepPriceLocked(symbol string) float64 {
	price, ok := c.prices[symbol]
	if !ok {
		price = basePrices[symbol]
		if price == 0 {
			price = defaultBasePrice
		}
	}
	price *= 1 + (c.rng.Float64()*0.04 - 0.02)
	c.prices[symbol] = price
	return price
}
