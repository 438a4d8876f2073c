package di

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/aristath/orium/internal/approximator"
	"github.com/aristath/orium/internal/artifacts"
	"github.com/aristath/orium/internal/config"
	"github.com/aristath/orium/internal/dataset"
	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/replay"
	"github.com/aristath/orium/internal/runs"
	"github.com/aristath/orium/internal/server"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates repositories on top of the opened databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.RunsDB == nil {
		return fmt.Errorf("runs database not initialized")
	}
	container.RunsRepo = runs.NewRepository(container.RunsDB.Conn(), log)
	container.Tracker = server.NewTracker()
	return nil
}

// InitializeTraining loads the dataset and builds the environment, replay memory and model.
// One seeded source feeds every random choice so a seed reproduces a run.
func InitializeTraining(container *Container, cfg *config.Config, log zerolog.Logger) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	container.Seed = seed
	container.Rand = rand.New(rand.NewSource(seed))

	start := time.Now()
	series, scaler, err := dataset.LoadFile(cfg.DatasetPath(), cfg.LoadOptions())
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	container.Series = series
	container.Scaler = scaler

	log.Info().
		Str("path", cfg.DatasetPath()).
		Int("rows", series.Len()).
		Int("features", series.NumFeatures()).
		Dur("duration_ms", time.Since(start)).
		Msg("Dataset loaded")

	envCfg := cfg.EnvironmentConfig()
	env, err := environment.New(series, envCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create environment: %w", err)
	}
	container.Environment = env

	memory, err := replay.NewBuffer(cfg.Training.MemorySize, container.Rand)
	if err != nil {
		return fmt.Errorf("failed to create replay memory: %w", err)
	}
	container.Memory = memory

	approx, err := approximator.NewLinear(envCfg.SequenceLength*series.NumFeatures(), cfg.LearningRate, container.Rand)
	if err != nil {
		return fmt.Errorf("failed to create approximator: %w", err)
	}
	container.Approximator = approx

	return nil
}

// InitializeArtifacts opens the configured artifact store and warm-starts the model
// from the last checkpoint when one exists.
func InitializeArtifacts(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	var store artifacts.Store
	switch cfg.ArtifactBackend {
	case config.BackendS3:
		s3Store, err := artifacts.NewS3Store(ctx, artifacts.S3Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create s3 artifact store: %w", err)
		}
		store = s3Store
	default:
		fileStore, err := artifacts.NewFileStore(cfg.ArtifactDir)
		if err != nil {
			return fmt.Errorf("failed to create file artifact store: %w", err)
		}
		store = fileStore
	}
	container.Store = store

	if container.Approximator == nil {
		return fmt.Errorf("approximator not initialized")
	}

	err := artifacts.LoadModel(ctx, store, cfg.ModelKey, container.Approximator)
	switch {
	case err == nil:
		container.WarmStarted = true
		log.Info().Str("key", cfg.ModelKey).Msg("Warm-started model from checkpoint")
	case errors.Is(err, artifacts.ErrNotFound):
		log.Info().Str("key", cfg.ModelKey).Msg("No checkpoint found, starting from fresh weights")
	default:
		return fmt.Errorf("failed to warm-start model: %w", err)
	}

	container.Checkpointer = artifacts.NewCheckpointer(store, cfg.ModelKey, container.Approximator, cfg.CheckpointEvery, log,
		artifacts.WithScaler(container.Scaler))
	return nil
}
