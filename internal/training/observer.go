package training

import (
	"context"
	"time"
)

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Index               int           `json:"index"`
	FinalPortfolioValue float64       `json:"final_portfolio_value"`
	Steps               int           `json:"steps"`
	Epsilon             float64       `json:"epsilon"` // after the end-of-episode decay
	TotalReward         float64       `json:"total_reward"`
	Trades              int           `json:"trades"`
	LearnCalls          int           `json:"learn_calls"`
	Duration            time.Duration `json:"duration"`
}

// EpisodeObserver receives every finished episode, in order, on the training goroutine.
// A returned error aborts the run.
type EpisodeObserver interface {
	ObserveEpisode(ctx context.Context, result EpisodeResult) error
}

// ObserverFunc adapts a function to EpisodeObserver
type ObserverFunc func(ctx context.Context, result EpisodeResult) error

// ObserveEpisode calls f
func (f ObserverFunc) ObserveEpisode(ctx context.Context, result EpisodeResult) error {
	return f(ctx, result)
}
