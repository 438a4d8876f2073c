// Package main is the entry point for the Orium trainer.
// It loads a minute-bar dataset, trains an epsilon-greedy Q-learning agent on it
// and records every episode in runs.db.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/orium/internal/config"
	"github.com/aristath/orium/internal/di"
	"github.com/aristath/orium/internal/runs"
	"github.com/aristath/orium/internal/server"
	"github.com/aristath/orium/internal/training"
	"github.com/aristath/orium/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Orium trainer")

	// SIGINT/SIGTERM cancel training; the current episode is abandoned
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("Training failed")
		os.Exit(1)
	}
}

// run trains once. Only training observes ctx: setup always completes so an
// interrupted run is still recorded and its model saved.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	setupCtx := context.WithoutCancel(ctx)

	container, err := di.Wire(setupCtx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close(log)

	hp := cfg.Hyperparameters()
	record, err := container.RunsRepo.CreateRun(setupCtx, hp, cfg.EnvironmentConfig())
	if err != nil {
		return err
	}
	container.Tracker.Start(record.ID, hp.NumEpisodes, hp.EpsilonStart)

	log = log.With().Str("run_id", record.ID).Logger()

	var srv *server.Server
	if cfg.ServeStatus {
		srv = server.New(server.Config{
			Log:     log,
			Port:    cfg.Port,
			RunsDB:  container.RunsDB,
			Runs:    container.RunsRepo,
			Tracker: container.Tracker,
		})
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
	}

	trainer, err := training.NewTrainer(
		container.Environment,
		container.Approximator,
		container.Memory,
		hp,
		container.Rand,
		log,
		training.WithObserver(runs.NewRecorder(container.RunsRepo, record.ID)),
		training.WithObserver(container.Tracker),
		training.WithObserver(container.Checkpointer),
	)
	if err != nil {
		finish(container, record.ID, runs.StatusFailed, err, log)
		return err
	}

	result, runErr := trainer.Run(ctx)

	status := runs.StatusCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		status = runs.StatusCanceled
	default:
		status = runs.StatusFailed
	}

	// Save what was learned even when the run stopped early
	saveCtx, cancelSave := context.WithTimeout(context.Background(), time.Minute)
	saveErr := container.Checkpointer.Save(saveCtx)
	cancelSave()
	if saveErr != nil {
		log.Error().Err(saveErr).Str("key", cfg.ModelKey).Msg("Failed to save final model")
	} else {
		log.Info().Str("key", cfg.ModelKey).Int("checkpoints", container.Checkpointer.Saved()).Msg("Model saved")
	}

	finishErr := runErr
	if finishErr == nil && saveErr != nil {
		status = runs.StatusFailed
		finishErr = saveErr
	}
	finish(container, record.ID, status, finishErr, log)

	if result != nil {
		log.Info().
			Str("status", string(status)).
			Int("episodes", len(result.Episodes)).
			Float64("final_epsilon", result.FinalEpsilon).
			Dur("duration_ms", result.Duration).
			Msg("Training finished")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}

	if status == runs.StatusCanceled {
		log.Warn().Msg("Training interrupted")
		return nil
	}
	return finishErr
}

// finish marks the run terminal in runs.db and on the tracker.
// It uses a fresh context so a canceled run is still recorded.
func finish(container *di.Container, runID string, status runs.Status, runErr error, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := container.RunsRepo.FinishRun(ctx, runID, status, runErr); err != nil {
		log.Error().Err(err).Msg("Failed to record run outcome")
	}
	container.Tracker.Finish(server.TrainingState(status), runErr)
}
