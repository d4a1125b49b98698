package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camuig/quorum-trader/internal/advisor"
	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/broker/paper"
	"github.com/camuig/quorum-trader/internal/broker/tinkoff"
	"github.com/camuig/quorum-trader/internal/budget"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/memory"
	"github.com/camuig/quorum-trader/internal/news"
	"github.com/camuig/quorum-trader/internal/orchestrator"
	"github.com/camuig/quorum-trader/internal/risk"
	"github.com/camuig/quorum-trader/internal/scheduler"
	"github.com/camuig/quorum-trader/internal/sentiment"
	"github.com/camuig/quorum-trader/internal/storage"
	"github.com/camuig/quorum-trader/internal/telegram"
	"github.com/camuig/quorum-trader/internal/voting"
	"github.com/camuig/quorum-trader/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/quorum-trader.db", "path to SQLite database")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.New(cfg.Logging.Level)
	log.Info("starting quorum-trader", "driver", cfg.Broker.Driver, "agents", len(cfg.Agents))

	// Init database
	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init broker by driver
	bk, err := newBroker(ctx, cfg, log)
	if err != nil {
		log.Error("broker init failed", "error", err)
		os.Exit(1)
	}

	// Init services
	notifier := telegram.NewNotifier(cfg, log)
	mem := memory.NewManager(repo, log)

	advisors := make([]advisor.Advisor, 0, len(cfg.Agents))
	var voteTimeout time.Duration
	for _, a := range cfg.Agents {
		advisors = append(advisors, advisor.NewChatAdvisor(a, log))
		if t := a.Timeout(); t > voteTimeout {
			voteTimeout = t
		}
	}
	protocol := voting.NewProtocol(advisors, voteTimeout, log)

	gate := risk.NewGate(cfg.Risk, cfg.Trading.MaxTradePct, log)
	allocator := budget.NewAllocator(cfg.Budget, cfg.Agents, log)

	var scorer sentiment.Scorer = sentiment.Neutral{}
	if cfg.Sentiment.Enabled {
		scorer = sentiment.NewCached(sentiment.NewLLMScorer(cfg, log), cfg.SentimentCacheTTL())
	}
	newsClient := news.NewClient(log)

	orch := orchestrator.New(cfg, bk, protocol, gate, allocator, repo, mem,
		scorer, newsClient, notifier, log)

	sched, err := scheduler.NewScheduler(orch, bk, gate, allocator, repo, notifier, cfg, log)
	if err != nil {
		log.Error("scheduler init failed", "error", err)
		os.Exit(1)
	}
	webServer := web.NewServer(orch, sched, bk, repo, mem, cfg, log)

	// Start autopilot loop in goroutine
	go sched.Run(ctx)

	// Start web server in goroutine
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus("🤖 Quorum-Trader запущен")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	cancel() // stop autopilot loop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	if err := bk.Stop(); err != nil {
		log.Error("broker stop error", "error", err)
	}

	notifier.NotifyStatus("🛑 Quorum-Trader остановлен")
	log.Info("quorum-trader stopped")
}

func newBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (broker.Broker, error) {
	switch cfg.Broker.Driver {
	case "paper":
		return paper.NewClient(cfg, log), nil
	default:
		return tinkoff.NewClient(ctx, cfg, log)
	}
}
