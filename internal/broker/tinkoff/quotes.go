package tinkoff

import (
	"context"
	"fmt"
	"time"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/quorum-trader/internal/broker"
)

func (c *Client) Quote(ctx context.Context, symbol string) (*broker.Quote, error) {
	uid, err := c.resolveUID(symbol)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.Add(-7 * 24 * time.Hour)

	md := c.client.NewMarketDataServiceClient()
	resp, err := md.GetCandles(
		uid,
		pb.CandleInterval_CANDLE_INTERVAL_HOUR,
		from, now,
		pb.GetCandlesRequest_CANDLE_SOURCE_EXCHANGE,
		0,
	)
	if err != nil {
		return nil, err
	}

	candles := resp.GetCandles()
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s", symbol)
	}

	last := closeAtOffset(candles, now, 0)
	q := &broker.Quote{
		Symbol:     symbol,
		LastPrice:  last,
		Change1d:   pctChange(closeAtOffset(candles, now, 24*time.Hour), last),
		Change1w:   pctChange(closeAtOffset(candles, now, 7*24*time.Hour), last),
		Volume24h:  sumVolume24h(candles, now),
		Volatility: hourlyVolatility(candles),
	}
	return q, nil
}

// closeAtOffset finds the close price of the candle closest to (now - offset).
func closeAtOffset(candles []*pb.HistoricCandle, now time.Time, offset time.Duration) float64 {
	target := now.Add(-offset)
	var best *pb.HistoricCandle
	var bestDiff time.Duration

	for _, c := range candles {
		t := c.GetTime().AsTime()
		diff := absDuration(t.Sub(target))
		if best == nil || diff < bestDiff {
			best = c
			bestDiff = diff
		}
	}

	if best == nil {
		return 0
	}
	return best.GetClose().ToFloat()
}

func sumVolume24h(candles []*pb.HistoricCandle, now time.Time) float64 {
	cutoff := now.Add(-24 * time.Hour)
	var total float64
	for _, c := range candles {
		if c.GetTime().AsTime().After(cutoff) {
			total += float64(c.GetVolume())
		}
	}
	return total
}

// hourlyVolatility is the mean absolute hour-over-hour move as a fraction
// of price, computed over close prices.
func hourlyVolatility(candles []*pb.HistoricCandle) float64 {
	if len(candles) < 2 {
		return 0
	}

	var sum float64
	var n int
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].GetClose().ToFloat()
		cur := candles[i].GetClose().ToFloat()
		if prev <= 0 {
			continue
		}
		sum += absFloat(cur-prev) / prev
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
