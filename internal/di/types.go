// Package di wires the trainer's dependencies.
package di

import (
	"math/rand"

	"github.com/aristath/orium/internal/approximator"
	"github.com/aristath/orium/internal/artifacts"
	"github.com/aristath/orium/internal/config"
	"github.com/aristath/orium/internal/database"
	"github.com/aristath/orium/internal/dataset"
	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/replay"
	"github.com/aristath/orium/internal/runs"
	"github.com/aristath/orium/internal/server"
	"github.com/rs/zerolog"
)

// Container holds everything a training run needs.
// It is created by Wire and owned by main.
type Container struct {
	Config *config.Config
	Seed   int64
	Rand   *rand.Rand

	// Databases
	RunsDB *database.DB

	// Repositories
	RunsRepo *runs.Repository

	// Data
	Series *dataset.Series
	Scaler *dataset.Scaler

	// Training components
	Environment  *environment.Environment
	Memory       *replay.Buffer
	Approximator *approximator.Linear

	// Artifacts
	Store        artifacts.Store
	Checkpointer *artifacts.Checkpointer
	WarmStarted  bool

	// Status
	Tracker *server.Tracker
}

// Close releases the databases. It checkpoints the WAL first so runs.db is self-contained.
func (c *Container) Close(log zerolog.Logger) {
	if c.RunsDB == nil {
		return
	}
	if err := c.RunsDB.WALCheckpoint("TRUNCATE"); err != nil {
		log.Warn().Err(err).Msg("Failed to checkpoint runs database")
	}
	if err := c.RunsDB.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close runs database")
	}
	c.RunsDB = nil
}
