package artifacts

import (
	"context"

	"github.com/aristath/orium/internal/dataset"
	"github.com/aristath/orium/internal/domain"
	"github.com/aristath/orium/internal/training"
	"github.com/rs/zerolog"
)

// Checkpointer saves the model every N finished episodes.
type Checkpointer struct {
	store  Store
	key    string
	approx domain.Approximator
	scaler *dataset.Scaler
	every  int
	saved  int
	log    zerolog.Logger
}

// CheckpointOption configures a Checkpointer
type CheckpointOption func(*Checkpointer)

// WithScaler stores scaler under ScalerKey(key) with every checkpoint
func WithScaler(scaler *dataset.Scaler) CheckpointOption {
	return func(c *Checkpointer) {
		c.scaler = scaler
	}
}

// NewCheckpointer returns an observer that saves approx under key every `every` episodes.
// every <= 0 disables intermediate checkpoints.
func NewCheckpointer(store Store, key string, approx domain.Approximator, every int, log zerolog.Logger, opts ...CheckpointOption) *Checkpointer {
	c := &Checkpointer{
		store:  store,
		key:    key,
		approx: approx,
		every:  every,
		log:    log.With().Str("component", "checkpointer").Str("key", key).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ObserveEpisode implements training.EpisodeObserver.
// A failed save is logged and training continues; the final save reports its error.
func (c *Checkpointer) ObserveEpisode(ctx context.Context, result training.EpisodeResult) error {
	if c.every <= 0 || (result.Index+1)%c.every != 0 {
		return nil
	}

	if err := c.write(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Int("episode", result.Index).Msg("Checkpoint failed")
		return nil
	}

	c.saved++
	c.log.Info().Int("episode", result.Index).Msg("Checkpoint saved")
	return nil
}

// Save writes the model immediately
func (c *Checkpointer) Save(ctx context.Context) error {
	if err := c.write(ctx); err != nil {
		return err
	}
	c.saved++
	return nil
}

func (c *Checkpointer) write(ctx context.Context) error {
	if err := SaveModel(ctx, c.store, c.key, c.approx); err != nil {
		return err
	}
	if c.scaler != nil {
		return SaveScaler(ctx, c.store, ScalerKey(c.key), c.scaler)
	}
	return nil
}

// Saved returns how many checkpoints were written
func (c *Checkpointer) Saved() int { return c.saved }

var _ training.EpisodeObserver = (*Checkpointer)(nil)
