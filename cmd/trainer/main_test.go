package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aristath/orium/internal/artifacts"
	"github.com/aristath/orium/internal/config"
	"github.com/aristath/orium/internal/database"
	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/runs"
	"github.com/aristath/orium/internal/training"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Unix,Date,Symbol,Open,High,Low,Close,Volume BTC,Volume USD\n")
	for i := 0; i < 40; i++ {
		price := 100 + float64(i%5)
		fmt.Fprintf(&b, "%d,2023-11-14,BTCUSD,%g,%g,%g,%g,%d,%d\n", 1700000000+60*i, price, price+1, price-1, price, i+1, (i+1)*100)
	}
	dataFile := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(dataFile, []byte(b.String()), 0644))

	return &config.Config{
		DataDir:         dir,
		DataFile:        dataFile,
		Seed:            7,
		LearningRate:    0.001,
		CheckpointEvery: 1,
		ModelKey:        "models/orium-linear.msgpack",
		ArtifactBackend: config.BackendFile,
		ArtifactDir:     filepath.Join(dir, "artifacts"),
		Training: training.Hyperparameters{
			Gamma:        0.95,
			EpsilonStart: 1.0,
			EpsilonEnd:   0.01,
			EpsilonDecay: 0.9,
			MemorySize:   100,
			BatchSize:    8,
			NumEpisodes:  2,
		},
		Environment: environment.Config{
			SequenceLength: 5,
			InitialBalance: 10,
			Commission:     0.001,
		},
	}
}

// recordedRuns reopens runs.db after run has closed it
func recordedRuns(t *testing.T, cfg *config.Config) ([]runs.Run, *runs.Repository) {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    cfg.RunsDatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := runs.NewRepository(db.Conn(), zerolog.Nop())
	list, err := repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	return list, repo
}

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		cancelFirst  bool
		wantStatus   runs.Status
		wantEpisodes int
	}{
		{name: "completes all episodes", wantStatus: runs.StatusCompleted, wantEpisodes: 2},
		{name: "canceled before training", cancelFirst: true, wantStatus: runs.StatusCanceled, wantEpisodes: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelFirst {
				cancel()
			}

			require.NoError(t, run(ctx, cfg, zerolog.Nop()))

			list, repo := recordedRuns(t, cfg)
			require.Len(t, list, 1)
			assert.Equal(t, tt.wantStatus, list[0].Status)
			assert.Equal(t, tt.wantEpisodes, list[0].EpisodesCompleted)
			assert.NotNil(t, list[0].FinishedAt)

			episodes, err := repo.ListEpisodes(context.Background(), list[0].ID)
			require.NoError(t, err)
			assert.Len(t, episodes, tt.wantEpisodes)

			assert.FileExists(t, filepath.Join(cfg.ArtifactDir, cfg.ModelKey))
			assert.FileExists(t, filepath.Join(cfg.ArtifactDir, artifacts.ScalerKey(cfg.ModelKey)))
		})
	}
}

func TestRun_WarmStartsSecondRun(t *testing.T) {
	cfg := testConfig(t)

	require.NoError(t, run(context.Background(), cfg, zerolog.Nop()))
	require.NoError(t, run(context.Background(), cfg, zerolog.Nop()))

	list, _ := recordedRuns(t, cfg)
	require.Len(t, list, 2)
	for _, r := range list {
		assert.Equal(t, runs.StatusCompleted, r.Status)
	}
}

func TestRun_MissingDatasetFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataFile = filepath.Join(cfg.DataDir, "missing.csv")

	err := run(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load dataset")
}
