// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/orium/internal/dataset"
	"github.com/aristath/orium/internal/domain"
	"github.com/aristath/orium/internal/environment"
	"github.com/aristath/orium/internal/training"
	"github.com/joho/godotenv"
)

// Artifact backends
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config holds application configuration. It is read once at startup.
type Config struct {
	DataDir        string // Base directory for datasets, the runs database and file artifacts (always absolute)
	DataFile       string // CSV export, relative to DataDir unless absolute
	VolumeColumn   string
	StartTimestamp int64
	LogLevel       string
	LogPretty      bool
	Port           int
	ServeStatus    bool
	Seed           int64 // 0 picks a time-based seed
	LearningRate   float64

	CheckpointEvery int    // Episodes between model checkpoints, 0 disables intermediate checkpoints
	ModelKey        string // Artifact key of the model checkpoint

	ArtifactBackend string
	ArtifactDir     string
	S3              S3Config

	Training    training.Hyperparameters
	Environment environment.Config
}

// S3Config holds settings for S3-compatible artifact storage (AWS, R2, MinIO)
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // Empty uses the AWS endpoint for Region
	AccessKey string // Empty falls back to the default AWS credential chain
	SecretKey string
}

// Load reads configuration from environment variables, after loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}

	dataDir, err := filepath.Abs(env.getEnv("ORIUM_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaults := training.DefaultHyperparameters()
	envDefaults := environment.DefaultConfig()

	cfg := &Config{
		DataDir:         dataDir,
		DataFile:        env.getEnv("DATA_FILE", "BTCUSD_1min_clean.csv"),
		VolumeColumn:    env.getEnv("VOLUME_COLUMN", ""),
		StartTimestamp:  env.getEnvAsInt64("START_TIMESTAMP", dataset.DefaultStartTimestamp),
		LogLevel:        env.getEnv("LOG_LEVEL", "info"),
		LogPretty:       env.getEnvAsBool("LOG_PRETTY", false),
		Port:            env.getEnvAsInt("PORT", 3001),
		ServeStatus:     env.getEnvAsBool("SERVE_STATUS", false),
		Seed:            env.getEnvAsInt64("SEED", 0),
		LearningRate:    env.getEnvAsFloat("LEARNING_RATE", 0.001),
		CheckpointEvery: env.getEnvAsInt("CHECKPOINT_EVERY", 10),
		ModelKey:        env.getEnv("MODEL_KEY", "models/orium-linear.msgpack"),
		ArtifactBackend: strings.ToLower(env.getEnv("ARTIFACT_BACKEND", BackendFile)),
		ArtifactDir:     env.getEnv("ARTIFACT_DIR", filepath.Join(dataDir, "artifacts")),
		S3: S3Config{
			Bucket:    env.getEnv("S3_BUCKET", ""),
			Prefix:    env.getEnv("S3_PREFIX", "orium"),
			Region:    env.getEnv("S3_REGION", "auto"),
			Endpoint:  env.getEnv("S3_ENDPOINT", ""),
			AccessKey: env.getEnv("S3_ACCESS_KEY_ID", ""),
			SecretKey: env.getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		Training: training.Hyperparameters{
			Gamma:        env.getEnvAsFloat("GAMMA", defaults.Gamma),
			EpsilonStart: env.getEnvAsFloat("EPSILON_START", defaults.EpsilonStart),
			EpsilonEnd:   env.getEnvAsFloat("EPSILON_END", defaults.EpsilonEnd),
			EpsilonDecay: env.getEnvAsFloat("EPSILON_DECAY", defaults.EpsilonDecay),
			MemorySize:   env.getEnvAsInt("MEMORY_SIZE", defaults.MemorySize),
			BatchSize:    env.getEnvAsInt("BATCH_SIZE", defaults.BatchSize),
			NumEpisodes:  env.getEnvAsInt("NUM_EPISODES", defaults.NumEpisodes),
		},
		Environment: environment.Config{
			SequenceLength: env.getEnvAsInt("SEQUENCE_LENGTH", envDefaults.SequenceLength),
			InitialBalance: env.getEnvAsFloat("INITIAL_BALANCE", envDefaults.InitialBalance),
			Commission:     env.getEnvAsFloat("COMMISSION", envDefaults.Commission),
		},
	}

	if err := env.errs.OrNil(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs domain.ValidationErrors

	appendAll := func(err error) {
		if err == nil {
			return
		}
		if verrs, ok := err.(domain.ValidationErrors); ok {
			errs = append(errs, verrs...)
			return
		}
		errs = append(errs, domain.ValidationError{Field: "config", Message: err.Error()})
	}

	appendAll(c.Training.Validate())
	appendAll(c.Environment.Validate())

	if c.DataFile == "" {
		errs = append(errs, domain.ValidationError{Field: "DATA_FILE", Message: "is required"})
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, domain.ValidationError{Field: "PORT", Message: "must be between 1 and 65535"})
	}
	if math.IsNaN(c.LearningRate) || c.LearningRate <= 0 {
		errs = append(errs, domain.ValidationError{Field: "LEARNING_RATE", Message: "must be greater than 0"})
	}
	if c.CheckpointEvery < 0 {
		errs = append(errs, domain.ValidationError{Field: "CHECKPOINT_EVERY", Message: "must be >= 0"})
	}
	if c.ModelKey == "" {
		errs = append(errs, domain.ValidationError{Field: "MODEL_KEY", Message: "is required"})
	}

	switch c.ArtifactBackend {
	case BackendFile:
		if c.ArtifactDir == "" {
			errs = append(errs, domain.ValidationError{Field: "ARTIFACT_DIR", Message: "is required for the file backend"})
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, domain.ValidationError{Field: "S3_BUCKET", Message: "is required for the s3 backend"})
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, domain.ValidationError{Field: "S3_ACCESS_KEY_ID", Message: "must be set together with S3_SECRET_ACCESS_KEY"})
		}
	default:
		errs = append(errs, domain.ValidationError{Field: "ARTIFACT_BACKEND", Message: fmt.Sprintf("unknown backend %q", c.ArtifactBackend)})
	}

	return errs.OrNil()
}

// DatasetPath returns the absolute path of the CSV export
func (c *Config) DatasetPath() string {
	if filepath.IsAbs(c.DataFile) {
		return c.DataFile
	}
	return filepath.Join(c.DataDir, c.DataFile)
}

// RunsDatabasePath returns the path of the training history database
func (c *Config) RunsDatabasePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// LoadOptions returns the CSV parsing options
func (c *Config) LoadOptions() dataset.LoadOptions {
	return dataset.LoadOptions{
		StartTimestamp: c.StartTimestamp,
		VolumeColumn:   c.VolumeColumn,
	}
}

// Hyperparameters returns the immutable learning schedule
func (c *Config) Hyperparameters() training.Hyperparameters {
	return c.Training
}

// EnvironmentConfig returns the immutable environment parameters
func (c *Config) EnvironmentConfig() environment.Config {
	return c.Environment
}

// envReader reads typed environment variables, recording malformed values.
type envReader struct {
	errs domain.ValidationErrors
}

func (r *envReader) invalid(key, value, kind string) {
	r.errs = append(r.errs, domain.ValidationError{Field: key, Message: fmt.Sprintf("%q is not a valid %s", value, kind)})
}

// Helper functions
func (r *envReader) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			r.invalid(key, value, "integer")
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func (r *envReader) getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			r.invalid(key, value, "integer")
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func (r *envReader) getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			r.invalid(key, value, "number")
			return defaultValue
		}
		return floatVal
	}
	return defaultValue
}

func (r *envReader) getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			r.invalid(key, value, "boolean")
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}
