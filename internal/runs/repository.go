package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/orium/internal/database"
	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/training"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Repository handles run and episode persistence in runs.db.
// Timestamps are stored as Unix milliseconds.
type Repository struct {
	runsDB *sql.DB        // runs.db - runs and episodes tables
	log    zerolog.Logger // Structured logger
}

// NewRepository creates a new runs repository.
//
// Parameters:
//   - runsDB: Database connection to runs.db (schema applied by database.Migrate)
//   - log: Structured logger
func NewRepository(runsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		runsDB: runsDB,
		log:    log.With().Str("repo", "runs").Logger(),
	}
}

const runColumns = `id, status, started_at, finished_at, error, hyperparameters, environment,
	episodes_completed, best_portfolio_value, final_epsilon`

// CreateRun inserts a new run in the running state and returns it.
func (r *Repository) CreateRun(ctx context.Context, hp training.Hyperparameters, envCfg environment.Config) (*Run, error) {
	hpJSON, err := json.Marshal(hp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hyperparameters: %w", err)
	}
	envJSON, err := json.Marshal(envCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode environment config: %w", err)
	}

	run := &Run{
		ID:              uuid.New().String(),
		Status:          StatusRunning,
		StartedAt:       time.UnixMilli(time.Now().UnixMilli()).UTC(),
		Hyperparameters: hp,
		Environment:     envCfg,
	}

	_, err = r.runsDB.ExecContext(ctx, `
		INSERT INTO runs (id, status, started_at, hyperparameters, environment)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, string(run.Status), run.StartedAt.UnixMilli(), string(hpJSON), string(envJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Info().Str("run_id", run.ID).Msg("Run created")
	return run, nil
}

// RecordEpisode stores one episode and updates the run's running totals atomically.
func (r *Repository) RecordEpisode(ctx context.Context, runID string, ep training.EpisodeResult) error {
	return database.WithTransaction(r.runsDB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO episodes (
				run_id, episode_index, final_portfolio_value, total_reward, epsilon,
				steps, trades, learn_calls, duration_ms, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			ep.Index,
			ep.FinalPortfolioValue,
			ep.TotalReward,
			ep.Epsilon,
			ep.Steps,
			ep.Trades,
			ep.LearnCalls,
			ep.Duration.Milliseconds(),
			time.Now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert episode %d: %w", ep.Index, err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE runs SET
				episodes_completed = episodes_completed + 1,
				best_portfolio_value = MAX(COALESCE(best_portfolio_value, ?), ?),
				final_epsilon = ?
			WHERE id = ?
		`, ep.FinalPortfolioValue, ep.FinalPortfolioValue, ep.Epsilon, runID)
		if err != nil {
			return fmt.Errorf("failed to update run totals: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

// FinishRun marks a run as finished with status. runErr is stored when non-nil.
func (r *Repository) FinishRun(ctx context.Context, runID string, status Status, runErr error) error {
	var message sql.NullString
	if runErr != nil {
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}

	result, err := r.runsDB.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE id = ?
	`, string(status), time.Now().UnixMilli(), message, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	r.log.Info().Str("run_id", runID).Str("status", string(status)).Msg("Run finished")
	return nil
}

// GetRun returns a run by ID
func (r *Repository) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := r.runsDB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.runsDB.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ListEpisodes returns the episodes of a run in order
func (r *Repository) ListEpisodes(ctx context.Context, runID string) ([]Episode, error) {
	rows, err := r.runsDB.QueryContext(ctx, `
		SELECT run_id, episode_index, final_portfolio_value, total_reward, epsilon,
			steps, trades, learn_calls, duration_ms, recorded_at
		FROM episodes WHERE run_id = ? ORDER BY episode_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	episodes := make([]Episode, 0)
	for rows.Next() {
		var ep Episode
		var durationMs, recordedAt int64
		if err := rows.Scan(
			&ep.RunID,
			&ep.Index,
			&ep.FinalPortfolioValue,
			&ep.TotalReward,
			&ep.Epsilon,
			&ep.Steps,
			&ep.Trades,
			&ep.LearnCalls,
			&durationMs,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		ep.Duration = time.Duration(durationMs) * time.Millisecond
		ep.RecordedAt = time.UnixMilli(recordedAt).UTC()
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}
	return episodes, nil
}

// Summary computes aggregate statistics over the episodes of a run.
func (r *Repository) Summary(ctx context.Context, runID string) (*Summary, error) {
	if _, err := r.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	episodes, err := r.ListEpisodes(ctx, runID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Episodes: len(episodes)}
	if len(episodes) == 0 {
		return summary, nil
	}

	values := make([]float64, len(episodes))
	rewards := make([]float64, len(episodes))
	for i, ep := range episodes {
		values[i] = ep.FinalPortfolioValue
		rewards[i] = ep.TotalReward
		summary.TotalTrades += ep.Trades
		summary.TotalSteps += ep.Steps
	}

	summary.MeanPortfolioValue = stat.Mean(values, nil)
	summary.MeanReward = stat.Mean(rewards, nil)
	summary.BestPortfolioValue = floats.Max(values)
	summary.WorstPortfolioValue = floats.Min(values)
	if len(values) > 1 {
		summary.StdPortfolioValue = stat.StdDev(values, nil)
	}

	return summary, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
		runErr     sql.NullString
		hpJSON     string
		envJSON    string
		best       sql.NullFloat64
		epsilon    sql.NullFloat64
	)

	if err := row.Scan(
		&run.ID,
		&status,
		&startedAt,
		&finishedAt,
		&runErr,
		&hpJSON,
		&envJSON,
		&run.EpisodesCompleted,
		&best,
		&epsilon,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = Status(status)
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		run.FinishedAt = &t
	}
	run.Error = runErr.String
	if best.Valid {
		v := best.Float64
		run.BestPortfolioValue = &v
	}
	if epsilon.Valid {
		v := epsilon.Float64
		run.FinalEpsilon = &v
	}

	if err := json.Unmarshal([]byte(hpJSON), &run.Hyperparameters); err != nil {
		return nil, fmt.Errorf("failed to decode hyperparameters of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(envJSON), &run.Environment); err != nil {
		return nil, fmt.Errorf("failed to decode environment of run %s: %w", run.ID, err)
	}

	return &run, nil
}
