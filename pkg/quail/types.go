package quail

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Backtest statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// User is a registered account
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tokens is an access and refresh token pair
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by Login
type LoginResult struct {
	Tokens
	User *User `json:"user"`
}

// RegisterRequest is the body of Register
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Strategy is a user-owned piece of trading code
type Strategy struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateStrategyRequest is the body of CreateStrategy
type CreateStrategyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code"`
}

// UpdateStrategyRequest changes the fields that are set
type UpdateStrategyRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Code        *string `json:"code,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// Backtest is one execution of a strategy
type Backtest struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"userId"`
	StrategyID uuid.UUID       `json:"strategyId"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Results    json.RawMessage `json:"results"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Strategy   *Strategy       `json:"strategy,omitempty"`
	Metrics    []Metric        `json:"metrics,omitempty"`
}

// Terminal reports whether the backtest has finished
func (b *Backtest) Terminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusFailed
}

// Metric is a figure derived from a completed backtest
type Metric struct {
	ID         uuid.UUID       `json:"id"`
	BacktestID uuid.UUID       `json:"backtestId"`
	Name       string          `json:"name"`
	Value      float64         `json:"value"`
	Unit       string          `json:"unit,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// CreateBacktestRequest is the body of CreateBacktest
type CreateBacktestRequest struct {
	StrategyID uuid.UUID `json:"strategyId"`
	Name       string    `json:"name"`
}

// BacktestEvent is a lifecycle notification pushed over the websocket
type BacktestEvent struct {
	Type       string    `json:"type"`
	BacktestID uuid.UUID `json:"backtestId"`
	UserID     uuid.UUID `json:"userId"`
	StrategyID uuid.UUID `json:"strategyId"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}
