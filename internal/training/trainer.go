// Package training runs the epsilon-greedy Q-learning loop over a trading environment.
package training

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/aristath/orium/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Environment is the simulation the trainer drives
type Environment interface {
	Reset() domain.ObservationWindow
	Step(action domain.Action) domain.StepResult
	Portfolio() domain.PortfolioState
	Trades() int
}

// Memory stores transitions for experience replay
type Memory interface {
	Push(t domain.Transition)
	Sample(batchSize int) ([]domain.Transition, error)
	Len() int
}

// RunState is the mutable part of a run, owned by the trainer.
type RunState struct {
	Epsilon      float64 `json:"epsilon"`
	EpisodeIndex int     `json:"episode_index"` // Episode in progress, or the next one to run
}

// RunResult summarizes a run. On error it holds the episodes completed so far.
type RunResult struct {
	Episodes     []EpisodeResult `json:"episodes"`
	FinalEpsilon float64         `json:"final_epsilon"`
	Duration     time.Duration   `json:"duration"`
}

// Option configures a Trainer
type Option func(*Trainer)

// WithObserver registers an observer notified after every episode
func WithObserver(o EpisodeObserver) Option {
	return func(t *Trainer) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

// Trainer runs episodes sequentially. It is not safe for concurrent use.
type Trainer struct {
	env       Environment
	approx    domain.Approximator
	memory    Memory
	hp        Hyperparameters
	rng       *rand.Rand
	state     RunState
	observers []EpisodeObserver
	log       zerolog.Logger
}

// NewTrainer wires a trainer. rng drives exploration; seed it for reproducible runs.
func NewTrainer(env Environment, approx domain.Approximator, memory Memory, hp Hyperparameters, rng *rand.Rand, log zerolog.Logger, opts ...Option) (*Trainer, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if env == nil || approx == nil || memory == nil || rng == nil {
		return nil, fmt.Errorf("%w: environment, approximator, memory and rng are required", domain.ErrInvalidConfig)
	}

	t := &Trainer{
		env:    env,
		approx: approx,
		memory: memory,
		hp:     hp,
		rng:    rng,
		state:  RunState{Epsilon: hp.EpsilonStart},
		log:    log.With().Str("component", "trainer").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// State returns a copy of the current run state
func (t *Trainer) State() RunState {
	return t.state
}

// Run trains for NumEpisodes episodes.
// It stops between steps when ctx is done and returns ctx.Err().
// Approximator failures abort the run as *domain.ApproximatorError.
func (t *Trainer) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		Episodes: make([]EpisodeResult, 0, t.hp.NumEpisodes),
	}

	t.log.Info().
		Int("episodes", t.hp.NumEpisodes).
		Float64("gamma", t.hp.Gamma).
		Float64("epsilon", t.state.Epsilon).
		Int("batch_size", t.hp.BatchSize).
		Int("memory_size", t.hp.MemorySize).
		Msg("Training started")

	finish := func(err error) (*RunResult, error) {
		result.FinalEpsilon = t.state.Epsilon
		result.Duration = time.Since(start)
		return result, err
	}

	for ep := 0; ep < t.hp.NumEpisodes; ep++ {
		t.state.EpisodeIndex = ep

		episode, err := t.runEpisode(ctx, ep)
		if err != nil {
			t.log.Error().Err(err).Int("episode", ep).Msg("Training aborted")
			return finish(err)
		}

		t.state.Epsilon = t.hp.NextEpsilon(t.state.Epsilon)
		episode.Epsilon = t.state.Epsilon
		result.Episodes = append(result.Episodes, episode)

		t.log.Info().
			Int("episode", ep+1).
			Int("of", t.hp.NumEpisodes).
			Float64("portfolio_value", episode.FinalPortfolioValue).
			Int("steps", episode.Steps).
			Float64("epsilon", episode.Epsilon).
			Float64("total_reward", episode.TotalReward).
			Int("trades", episode.Trades).
			Dur("duration", episode.Duration).
			Msg("Episode complete")

		for _, o := range t.observers {
			if err := o.ObserveEpisode(ctx, episode); err != nil {
				return finish(fmt.Errorf("episode observer: %w", err))
			}
		}
	}

	t.state.EpisodeIndex = t.hp.NumEpisodes
	t.log.Info().Dur("duration", time.Since(start)).Float64("epsilon", t.state.Epsilon).Msg("Training finished")
	return finish(nil)
}

func (t *Trainer) runEpisode(ctx context.Context, index int) (EpisodeResult, error) {
	start := time.Now()
	episode := EpisodeResult{Index: index}

	state := t.env.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return episode, err
		}

		action, err := t.selectAction(ctx, state)
		if err != nil {
			return episode, err
		}

		step := t.env.Step(action)
		episode.Steps++
		episode.TotalReward += step.Reward

		if step.NextState != nil {
			t.memory.Push(domain.Transition{
				State:     state,
				Action:    action,
				Reward:    step.Reward,
				NextState: *step.NextState,
				Done:      step.Done,
			})
		}

		if t.memory.Len() > t.hp.BatchSize {
			if err := t.learn(ctx); err != nil {
				return episode, err
			}
			episode.LearnCalls++
		}

		if step.Done || step.NextState == nil {
			break
		}
		state = *step.NextState
	}

	episode.FinalPortfolioValue = t.env.Portfolio().PortfolioValue
	episode.Trades = t.env.Trades()
	episode.Duration = time.Since(start)
	return episode, nil
}

// selectAction picks a random action with probability epsilon, else the greedy one.
func (t *Trainer) selectAction(ctx context.Context, state domain.ObservationWindow) (domain.Action, error) {
	if t.rng.Float64() < t.state.Epsilon {
		return domain.Actions[t.rng.Intn(domain.NumActions)], nil
	}

	values, err := t.predict(ctx, []domain.ObservationWindow{state})
	if err != nil {
		return domain.ActionHold, err
	}
	return domain.ActionFromIndex(floats.MaxIdx(values[0]))
}

// learn performs one replay update: a sampled batch, TD targets, and a single Fit.
func (t *Trainer) learn(ctx context.Context) error {
	batch, err := t.memory.Sample(t.hp.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to sample replay memory: %w", err)
	}

	states := make([]domain.ObservationWindow, len(batch))
	nextStates := make([]domain.ObservationWindow, len(batch))
	for i, tr := range batch {
		states[i] = tr.State
		nextStates[i] = tr.NextState
	}

	current, err := t.predict(ctx, states)
	if err != nil {
		return err
	}
	future, err := t.predict(ctx, nextStates)
	if err != nil {
		return err
	}

	targets := make([][]float64, len(batch))
	for i, tr := range batch {
		target := make([]float64, domain.NumActions)
		copy(target, current[i])

		value := tr.Reward
		if !tr.Done {
			value += t.hp.Gamma * floats.Max(future[i])
		}
		target[tr.Action.Index()] = value
		targets[i] = target
	}

	if err := t.approx.Fit(ctx, states, targets); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.ApproximatorError{Op: "fit", Err: err}
	}
	return nil
}

// predict calls the approximator and checks the output shape.
func (t *Trainer) predict(ctx context.Context, windows []domain.ObservationWindow) ([][]float64, error) {
	values, err := t.approx.Predict(ctx, windows)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.ApproximatorError{Op: "predict", Err: err}
	}

	if len(values) != len(windows) {
		return nil, &domain.ApproximatorError{
			Op:  "predict",
			Err: fmt.Errorf("returned %d vectors for %d windows", len(values), len(windows)),
		}
	}
	for i, v := range values {
		if len(v) != domain.NumActions {
			return nil, &domain.ApproximatorError{
				Op:  "predict",
				Err: fmt.Errorf("vector %d has %d values, expected %d", i, len(v), domain.NumActions),
			}
		}
	}
	return values, nil
}
