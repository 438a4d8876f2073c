// Package environment simulates a single-asset trading episode over a feature series.
package environment

import (
	"fmt"
	"math"

	"github.com/aristath/orium/internal/domain"
	"github.com/rs/zerolog"
)

// Config holds environment parameters
type Config struct {
	SequenceLength int     `json:"sequence_length"` // Rows per observation window
	InitialBalance float64 `json:"initial_balance"` // Cash at the start of every episode
	Commission     float64 `json:"commission"`      // Fraction deducted from the amount received on every trade
}

// DefaultConfig returns a one-hour window, 10 units of cash and a 0.1% commission
func DefaultConfig() Config {
	return Config{
		SequenceLength: 60,
		InitialBalance: 10.0,
		Commission:     0.001,
	}
}

// Validate checks the configuration and reports every invalid field at once.
func (c Config) Validate() error {
	var errs domain.ValidationErrors

	if c.SequenceLength <= 0 {
		errs = append(errs, domain.ValidationError{Field: "sequence_length", Message: "must be greater than 0"})
	}
	if math.IsNaN(c.InitialBalance) || math.IsInf(c.InitialBalance, 0) || c.InitialBalance < 0 {
		errs = append(errs, domain.ValidationError{Field: "initial_balance", Message: "must be a finite value >= 0"})
	}
	if math.IsNaN(c.Commission) || c.Commission < 0 || c.Commission >= 1 {
		errs = append(errs, domain.ValidationError{Field: "commission", Message: "must be in [0, 1)"})
	}

	return errs.OrNil()
}

// Environment is a turn-based simulation of one trading episode.
// It is not safe for concurrent use.
type Environment struct {
	series    domain.FeatureSeries
	cfg       Config
	lastIndex int
	cursor    int
	portfolio domain.PortfolioState
	trades    int
	log       zerolog.Logger
}

// New creates an environment positioned at the start of an episode.
func New(series domain.FeatureSeries, cfg Config, log zerolog.Logger) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if series == nil {
		return nil, fmt.Errorf("%w: series is required", domain.ErrInvalidConfig)
	}
	if series.Len() < cfg.SequenceLength {
		return nil, fmt.Errorf("%w: series has %d rows, need at least %d",
			domain.ErrInsufficientData, series.Len(), cfg.SequenceLength)
	}

	e := &Environment{
		series:    series,
		cfg:       cfg,
		lastIndex: series.Len() - 1,
		log:       log.With().Str("component", "environment").Logger(),
	}
	e.Reset()

	e.log.Debug().
		Int("rows", series.Len()).
		Int("features", series.NumFeatures()).
		Int("sequence_length", cfg.SequenceLength).
		Float64("initial_balance", cfg.InitialBalance).
		Float64("commission", cfg.Commission).
		Msg("Environment created")

	return e, nil
}

// Reset starts a new episode and returns the first full observation window.
func (e *Environment) Reset() domain.ObservationWindow {
	e.portfolio = domain.PortfolioState{
		CashBalance:    e.cfg.InitialBalance,
		AssetHeld:      0,
		PortfolioValue: e.cfg.InitialBalance,
	}
	e.cursor = e.cfg.SequenceLength - 1
	e.trades = 0

	return e.series.Window(e.cursor, e.cfg.SequenceLength)
}

// Step applies action at the next row and returns the resulting window and reward.
// Buying without cash or selling without asset is a silent no-op.
func (e *Environment) Step(action domain.Action) domain.StepResult {
	e.cursor++
	if e.cursor > e.lastIndex {
		// Keep the cursor one past the end so repeated steps stay exhausted.
		e.cursor = e.lastIndex + 1
		return domain.StepResult{NextState: nil, Reward: 0, Done: true}
	}

	price := e.series.Close(e.cursor)

	switch action {
	case domain.ActionBuy:
		if e.portfolio.CashBalance > 0 {
			bought := e.portfolio.CashBalance / price
			e.portfolio.AssetHeld += bought * (1 - e.cfg.Commission)
			e.portfolio.CashBalance = 0
			e.trades++
			e.log.Trace().Int("cursor", e.cursor).Float64("price", price).Float64("asset", e.portfolio.AssetHeld).Msg("Bought")
		}
	case domain.ActionSell:
		if e.portfolio.AssetHeld > 0 {
			e.portfolio.CashBalance += e.portfolio.AssetHeld * price * (1 - e.cfg.Commission)
			e.portfolio.AssetHeld = 0
			e.trades++
			e.log.Trace().Int("cursor", e.cursor).Float64("price", price).Float64("cash", e.portfolio.CashBalance).Msg("Sold")
		}
	case domain.ActionHold:
	default:
		e.log.Warn().Int("action", int(action)).Msg("Unknown action treated as HOLD")
	}

	previous := e.portfolio.PortfolioValue
	e.portfolio.PortfolioValue = e.portfolio.CashBalance + e.portfolio.AssetHeld*price

	next := e.series.Window(e.cursor, e.cfg.SequenceLength)
	return domain.StepResult{
		NextState: &next,
		Reward:    e.portfolio.PortfolioValue - previous,
		Done:      e.cursor >= e.lastIndex,
	}
}

// Portfolio returns a copy of the current holdings
func (e *Environment) Portfolio() domain.PortfolioState {
	return e.portfolio
}

// CurrentPrice returns the close at the cursor, or at the last row once exhausted.
func (e *Environment) CurrentPrice() float64 {
	if e.cursor > e.lastIndex {
		return e.series.Close(e.lastIndex)
	}
	return e.series.Close(e.cursor)
}

// Cursor returns the index of the row the last observation window ends at.
func (e *Environment) Cursor() int {
	return e.cursor
}

// Trades returns the number of executed (non no-op) trades since the last Reset.
func (e *Environment) Trades() int {
	return e.trades
}

// Config returns the environment configuration
func (e *Environment) Config() Config {
	return e.cfg
}
