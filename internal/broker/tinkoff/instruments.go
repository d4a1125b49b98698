package tinkoff

import "fmt"

func (c *Client) resolveUID(ticker string) (string, error) {
	if cached, ok := c.uidCache.Load(ticker); ok {
		return cached.(string), nil
	}

	instruments := c.client.NewInstrumentsServiceClient()
	resp, err := instruments.FindInstrument(ticker)
	if err != nil {
		return "", fmt.Errorf("find instrument %s: %w", ticker, err)
	}

	for _, inst := range resp.GetInstruments() {
		if inst.GetTicker() == ticker {
			uid := inst.GetUid()
			c.uidCache.Store(ticker, uid)
			c.tickers.Store(uid, ticker)
			return uid, nil
		}
	}

	if len(resp.GetInstruments()) > 0 {
		inst := resp.GetInstruments()[0]
		uid := inst.GetUid()
		c.uidCache.Store(inst.GetTicker(), uid)
		c.tickers.Store(uid, inst.GetTicker())
		return uid, nil
	}

	return "", fmt.Errorf("instrument not found: %s", ticker)
}

func (c *Client) tickerByUID(uid string) (string, error) {
	if cached, ok := c.tickers.Load(uid); ok {
		return cached.(string), nil
	}

	instruments := c.client.NewInstrumentsServiceClient()
	resp, err := instruments.InstrumentByUid(uid)
	if err != nil {
		return "", fmt.Errorf("instrument by uid %s: %w", uid, err)
	}

	ticker := resp.GetInstrument().GetTicker()
	c.tickers.Store(uid, ticker)
	c.uidCache.Store(ticker, uid)
	return ticker, nil
}
