package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Trades

func (r *Repository) SaveTrade(trade *Trade) error {
	return r.db.Create(trade).Error
}

func (r *Repository) UpdateTrade(trade *Trade) error {
	return r.db.Save(trade).Error
}

func (r *Repository) GetOpenTradeBySymbol(symbol string) (*Trade, error) {
	var trade Trade
	err := r.db.Where("status = ? AND symbol = ? AND action = ?", "open", symbol, "BUY").
		Order("created_at DESC").First(&trade).Error
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *Repository) GetRecentTrades(limit int) ([]Trade, error) {
	var trades []Trade
	err := r.db.Order("created_at DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

// Agent memory

func (r *Repository) AppendAgentTrade(rec *AgentTradeRecord) error {
	return r.db.Create(rec).Error
}

func (r *Repository) GetAgentTrades(agent string, limit int) ([]AgentTradeRecord, error) {
	var recs []AgentTradeRecord
	err := r.db.Where("agent = ?", agent).
		Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

func (r *Repository) GetOpenAgentTrades(agent, symbol string) ([]AgentTradeRecord, error) {
	var recs []AgentTradeRecord
	err := r.db.Where("agent = ? AND symbol = ? AND outcome = ? AND action = ?", agent, symbol, "open", "BUY").
		Order("created_at ASC").Find(&recs).Error
	return recs, err
}

func (r *Repository) UpdateAgentTrade(rec *AgentTradeRecord) error {
	return r.db.Save(rec).Error
}

// AgentStats aggregates one agent's closed-trade performance.
type AgentStats struct {
	Agent      string  `json:"agent"`
	TradeCount int64   `json:"trade_count"`
	Wins       int64   `json:"wins"`
	WinRate    float64 `json:"win_rate"`
	TotalPnL   float64 `json:"total_pnl"`
}

func (r *Repository) GetAgentStats(agent string) (*AgentStats, error) {
	stats := &AgentStats{Agent: agent}

	err := r.db.Model(&AgentTradeRecord{}).
		Where("agent = ? AND outcome != ?", agent, "open").
		Count(&stats.TradeCount).Error
	if err != nil {
		return nil, err
	}

	err = r.db.Model(&AgentTradeRecord{}).
		Where("agent = ? AND outcome = ?", agent, "win").
		Count(&stats.Wins).Error
	if err != nil {
		return nil, err
	}

	err = r.db.Model(&AgentTradeRecord{}).
		Where("agent = ? AND outcome != ?", agent, "open").
		Select("COALESCE(SUM(pnl), 0)").Scan(&stats.TotalPnL).Error
	if err != nil {
		return nil, err
	}

	if stats.TradeCount > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TradeCount)
	}
	return stats, nil
}

// Cycles

func (r *Repository) SaveCycle(rec *CycleRecord) error {
	return r.db.Create(rec).Error
}

func (r *Repository) GetRecentCycles(limit int) ([]CycleRecord, error) {
	var recs []CycleRecord
	err := r.db.Order("created_at DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// Autopilot config (singleton row, ID = 1)

func (r *Repository) LoadAutopilotConfig() (*AutopilotConfig, error) {
	var cfg AutopilotConfig
	err := r.db.First(&cfg, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Repository) SaveAutopilotConfig(cfg *AutopilotConfig) error {
	cfg.ID = 1
	return r.db.Save(cfg).Error
}

func (r *Repository) TouchAutopilotRuns(lastRun, nextRun *time.Time) error {
	updates := map[string]interface{}{}
	if lastRun != nil {
		updates["last_run"] = lastRun
	}
	if nextRun != nil {
		updates["next_run"] = nextRun
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&AutopilotConfig{}).Where("id = ?", 1).Updates(updates).Error
}
