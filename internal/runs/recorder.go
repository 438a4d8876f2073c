package runs

import (
	"context"

	"github.com/aristath/orium/internal/training"
)

// Recorder persists every finished episode of one run.
type Recorder struct {
	repo  *Repository
	runID string
}

// NewRecorder creates a training.EpisodeObserver writing to runID
func NewRecorder(repo *Repository, runID string) *Recorder {
	return &Recorder{repo: repo, runID: runID}
}

// ObserveEpisode implements training.EpisodeObserver
func (r *Recorder) ObserveEpisode(ctx context.Context, result training.EpisodeResult) error {
	return r.repo.RecordEpisode(ctx, r.runID, result)
}

var _ training.EpisodeObserver = (*Recorder)(nil)
