// closeall liquidates every open position through the configured broker.
// Useful before a token rotation or when parking the bot for a while.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/broker/paper"
	"github.com/camuig/quorum-trader/internal/broker/tinkoff"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "show positions without closing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	ctx := context.Background()
	bk, err := newBroker(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "broker init error: %v\n", err)
		os.Exit(1)
	}
	defer bk.Stop()

	snap, err := bk.PortfolioSnapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portfolio error: %v\n", err)
		os.Exit(1)
	}

	if len(snap.Positions) == 0 {
		fmt.Println("No open positions.")
		return
	}

	fmt.Printf("Found %d position(s):\n\n", len(snap.Positions))
	for _, p := range snap.Positions {
		fmt.Printf("  %s: %.0f шт, ср.цена %.2f, текущая %.2f, P&L %.2f\n",
			p.Symbol, p.Quantity, p.AvgPrice, p.CurrentPrice, p.UnrealizedPnL)
	}
	fmt.Println()

	if *dryRun {
		fmt.Println("Dry run — no orders placed.")
		return
	}

	var closed, failed int
	for _, p := range snap.Positions {
		qty := int64(p.Quantity)
		if qty <= 0 {
			continue
		}
		res, err := bk.SubmitOrder(ctx, p.Symbol, broker.SideSell, qty)
		if err != nil || !res.Accepted {
			fmt.Printf("  FAILED %s: %v\n", p.Symbol, err)
			failed++
			continue
		}
		fmt.Printf("  closed %s x%d @ %.2f\n", p.Symbol, qty, res.FillPrice)
		closed++
	}

	fmt.Printf("\nClosed %d, failed %d.\n", closed, failed)
}

func newBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (broker.Broker, error) {
	switch cfg.Broker.Driver {
	case "paper":
		return paper.NewClient(cfg, log), nil
	default:
		return tinkoff.NewClient(ctx, cfg, log)
	}
}
