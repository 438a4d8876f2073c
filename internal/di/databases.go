package di

import (
	"fmt"

	"github.com/aristath/orium/internal/config"
	"github.com/aristath/orium/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens runs.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	runsDB, err := database.New(database.Config{
		Path:    cfg.RunsDatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runs database: %w", err)
	}

	if err := runsDB.Migrate(); err != nil {
		runsDB.Close()
		return nil, fmt.Errorf("failed to migrate runs database: %w", err)
	}
	container.RunsDB = runsDB

	log.Debug().Str("path", runsDB.Path()).Msg("Runs database ready")
	return container, nil
}
