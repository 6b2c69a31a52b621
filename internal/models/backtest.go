package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BacktestStatus is the lifecycle state of a backtest
type BacktestStatus string

const (
	BacktestStatusRunning   BacktestStatus = "running"
	BacktestStatusCompleted BacktestStatus = "completed"
	BacktestStatusFailed    BacktestStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s BacktestStatus) IsTerminal() bool {
	return s == BacktestStatusCompleted || s == BacktestStatusFailed
}

// Backtest is one execution of a strategy
type Backtest struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"userId"`
	StrategyID uuid.UUID       `db:"strategy_id" json:"strategyId"`
	Name       string          `db:"name" json:"name"`
	Status     BacktestStatus  `db:"status" json:"status"`
	Results    json.RawMessage `db:"results" json:"results"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`

	Strategy *Strategy `db:"-" json:"strategy,omitempty"`
	Metrics  []Metric  `db:"-" json:"metrics,omitempty"`
}

// Metric is a named figure derived from a completed backtest
type Metric struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	BacktestID uuid.UUID       `db:"backtest_id" json:"backtestId"`
	Name       string          `db:"name" json:"name"`
	Value      float64         `db:"value" json:"value"`
	Unit       string          `db:"unit" json:"unit,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}
