package server

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/orium/internal/training"
)

// TrainingState is the coarse state reported by the status API
type TrainingState string

const (
	StateIdle      TrainingState = "idle"
	StateRunning   TrainingState = "running"
	StateCompleted TrainingState = "completed"
	StateFailed    TrainingState = "failed"
	StateCanceled  TrainingState = "canceled"
)

// TrainingStatus is a point-in-time copy of the tracker
type TrainingStatus struct {
	State              TrainingState           `json:"state"`
	RunID              string                  `json:"run_id,omitempty"`
	StartedAt          *time.Time              `json:"started_at,omitempty"`
	TotalEpisodes      int                     `json:"total_episodes"`
	EpisodesCompleted  int                     `json:"episodes_completed"`
	Epsilon            float64                 `json:"epsilon"`
	BestPortfolioValue *float64                `json:"best_portfolio_value,omitempty"`
	LastEpisode        *training.EpisodeResult `json:"last_episode,omitempty"`
	Error              string                  `json:"error,omitempty"`
}

// Tracker follows the live run. It is written by the training goroutine
// and read by HTTP handlers, so every access holds the mutex.
type Tracker struct {
	mu     sync.RWMutex
	status TrainingStatus
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	return &Tracker{status: TrainingStatus{State: StateIdle}}
}

// Start resets the tracker for a new run
func (t *Tracker) Start(runID string, totalEpisodes int, epsilon float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.status = TrainingStatus{
		State:         StateRunning,
		RunID:         runID,
		StartedAt:     &now,
		TotalEpisodes: totalEpisodes,
		Epsilon:       epsilon,
	}
}

// ObserveEpisode implements training.EpisodeObserver
func (t *Tracker) ObserveEpisode(_ context.Context, result training.EpisodeResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.EpisodesCompleted++
	t.status.Epsilon = result.Epsilon
	last := result
	t.status.LastEpisode = &last
	if t.status.BestPortfolioValue == nil || result.FinalPortfolioValue > *t.status.BestPortfolioValue {
		best := result.FinalPortfolioValue
		t.status.BestPortfolioValue = &best
	}
	return nil
}

// Finish records the terminal state of the run
func (t *Tracker) Finish(state TrainingState, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.State = state
	if err != nil {
		t.status.Error = err.Error()
	}
}

// Status returns a copy of the current status
func (t *Tracker) Status() TrainingStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.status
	if s.LastEpisode != nil {
		last := *s.LastEpisode
		s.LastEpisode = &last
	}
	if s.BestPortfolioValue != nil {
		best := *s.BestPortfolioValue
		s.BestPortfolioValue = &best
	}
	if s.StartedAt != nil {
		started := *s.StartedAt
		s.StartedAt = &started
	}
	return s
}

var _ training.EpisodeObserver = (*Tracker)(nil)
