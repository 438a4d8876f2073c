// Package runs records training runs and their episodes in runs.db.
package runs

import (
	"errors"
	"time"

	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/training"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Status is the lifecycle state of a run
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Run is one invocation of the trainer.
type Run struct {
	ID                 string                   `json:"id"`
	Status             Status                   `json:"status"`
	StartedAt          time.Time                `json:"started_at"`
	FinishedAt         *time.Time               `json:"finished_at,omitempty"`
	Error              string                   `json:"error,omitempty"`
	Hyperparameters    training.Hyperparameters `json:"hyperparameters"`
	Environment        environment.Config       `json:"environment"`
	EpisodesCompleted  int                      `json:"episodes_completed"`
	BestPortfolioValue *float64                 `json:"best_portfolio_value,omitempty"`
	FinalEpsilon       *float64                 `json:"final_epsilon,omitempty"`
}

// Episode is a stored episode result.
type Episode struct {
	RunID      string    `json:"run_id"`
	RecordedAt time.Time `json:"recorded_at"`
	training.EpisodeResult
}

// Summary aggregates the episodes of a run.
type Summary struct {
	Episodes            int     `json:"episodes"`
	MeanPortfolioValue  float64 `json:"mean_portfolio_value"`
	StdPortfolioValue   float64 `json:"std_portfolio_value"`
	BestPortfolioValue  float64 `json:"best_portfolio_value"`
	WorstPortfolioValue float64 `json:"worst_portfolio_value"`
	MeanReward          float64 `json:"mean_reward"`
	TotalTrades         int     `json:"total_trades"`
	TotalSteps          int     `json:"total_steps"`
}
