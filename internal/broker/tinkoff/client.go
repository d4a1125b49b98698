package tinkoff

import (
	"context"
	"fmt"
	"sync"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

const (
	sandboxEndpoint = "sandbox-invest-public-api.tinkoff.ru:443"
	liveEndpoint    = "invest-public-api.tinkoff.ru:443"
)

// Client implements broker.Broker on top of the T-Invest API.
type Client struct {
	client *investgo.Client
	cfg    *config.Config
	clock  *broker.SessionClock
	log    *logger.Logger

	uidCache sync.Map // ticker -> instrument UID
	tickers  sync.Map // instrument UID -> ticker
}

func NewClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	endpoint := liveEndpoint
	if cfg.IsSandbox() {
		endpoint = sandboxEndpoint
	}

	investCfg := investgo.Config{
		EndPoint:  endpoint,
		Token:     cfg.Broker.Token,
		AccountId: cfg.Broker.AccountID,
		AppName:   "quorum-trader",
	}

	client, err := investgo.NewClient(ctx, investCfg, log)
	if err != nil {
		return nil, fmt.Errorf("create investgo client: %w", err)
	}

	c := &Client{
		client: client,
		cfg:    cfg,
		clock:  broker.NewSessionClock(cfg.ExchangeLocation()),
		log:    log,
	}

	if cfg.IsSandbox() && cfg.Broker.AccountID == "" {
		if err := c.setupSandbox(); err != nil {
			return nil, fmt.Errorf("setup sandbox: %w", err)
		}
	}

	return c, nil
}

func (c *Client) setupSandbox() error {
	sandbox := c.client.NewSandboxServiceClient()

	_, err := sandbox.SandboxPayIn(&investgo.SandboxPayInRequest{
		AccountId: c.client.Config.AccountId,
		Currency:  "RUB",
		Unit:      1000000,
		Nano:      0,
	})
	if err != nil {
		return fmt.Errorf("sandbox pay in: %w", err)
	}

	c.log.Info("sandbox account funded", "account_id", c.client.Config.AccountId)
	return nil
}

func (c *Client) AccountID() string {
	return c.client.Config.AccountId
}

func (c *Client) IsMarketOpen() bool {
	return c.clock.IsOpen()
}

func (c *Client) MarketStatus() broker.MarketStatus {
	return c.clock.Status()
}

func (c *Client) Stop() error {
	return c.client.Stop()
}
