package di

import (
	"context"
	"fmt"

	"github.com/aristath/orium/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize training components
// 4. Initialize artifacts (and warm start)
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		container.Close(log)
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeTraining(container, cfg, log); err != nil {
		container.Close(log)
		return nil, fmt.Errorf("failed to initialize training: %w", err)
	}

	if err := InitializeArtifacts(ctx, container, cfg, log); err != nil {
		container.Close(log)
		return nil, fmt.Errorf("failed to initialize artifacts: %w", err)
	}

	log.Info().
		Int64("seed", container.Seed).
		Bool("warm_start", container.WarmStarted).
		Str("artifact_backend", cfg.ArtifactBackend).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}
