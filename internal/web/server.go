// Package web exposes the JSON control surface: cycle triggering, status,
// leaderboard, market state and autopilot configuration.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/camuig/quorum-trader/internal/broker"
	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
	"github.com/camuig/quorum-trader/internal/memory"
	"github.com/camuig/quorum-trader/internal/orchestrator"
	"github.com/camuig/quorum-trader/internal/scheduler"
	"github.com/camuig/quorum-trader/internal/storage"
)

type Server struct {
	httpServer *http.Server
	orch       *orchestrator.Orchestrator
	sched      *scheduler.Scheduler
	broker     broker.Broker
	repo       *storage.Repository
	memory     *memory.Manager
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(
	orch *orchestrator.Orchestrator,
	sched *scheduler.Scheduler,
	b broker.Broker,
	repo *storage.Repository,
	mem *memory.Manager,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	s := &Server{
		orch:   orch,
		sched:  sched,
		broker: b,
		repo:   repo,
		memory: mem,
		config: cfg,
		logger: log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/cycle/run", s.handleRunCycle)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/market", s.handleMarket)
	mux.HandleFunc("/api/autopilot", s.handleAutopilot)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// Cycle runs are synchronous and can take minutes with slow advisors.
		WriteTimeout: 10 * time.Minute,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
