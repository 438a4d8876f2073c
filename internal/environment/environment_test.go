package environment

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/orium/internal/domain"
	testingpkg "github.com/aristath/orium/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T, series domain.FeatureSeries, cfg Config) *Environment {
	t.Helper()
	env, err := New(series, cfg, zerolog.Nop())
	require.NoError(t, err)
	return env
}

func assertPortfolioInvariant(t *testing.T, env *Environment) {
	t.Helper()
	p := env.Portfolio()
	assert.InDelta(t, p.CashBalance+p.AssetHeld*env.CurrentPrice(), p.PortfolioValue, 1e-9)
	assert.GreaterOrEqual(t, p.CashBalance, 0.0)
	assert.GreaterOrEqual(t, p.AssetHeld, 0.0)
}

func TestNew_Validation(t *testing.T) {
	series := testingpkg.ConstantSeries(20, 2, 100)

	tests := []struct {
		name    string
		series  domain.FeatureSeries
		cfg     Config
		wantErr error
	}{
		{"zero sequence length", series, Config{SequenceLength: 0, InitialBalance: 10}, domain.ErrInvalidConfig},
		{"negative balance", series, Config{SequenceLength: 5, InitialBalance: -1}, domain.ErrInvalidConfig},
		{"NaN balance", series, Config{SequenceLength: 5, InitialBalance: math.NaN()}, domain.ErrInvalidConfig},
		{"commission of one", series, Config{SequenceLength: 5, InitialBalance: 10, Commission: 1}, domain.ErrInvalidConfig},
		{"negative commission", series, Config{SequenceLength: 5, InitialBalance: 10, Commission: -0.1}, domain.ErrInvalidConfig},
		{"nil series", nil, Config{SequenceLength: 5, InitialBalance: 10}, domain.ErrInvalidConfig},
		{"series shorter than window", series, Config{SequenceLength: 21, InitialBalance: 10}, domain.ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := New(tt.series, tt.cfg, zerolog.Nop())
			require.Error(t, err)
			assert.Nil(t, env)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestConfig_ValidateReportsAllFields(t *testing.T) {
	err := Config{SequenceLength: -1, InitialBalance: -1, Commission: 2}.Validate()
	require.Error(t, err)

	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.NoError(t, DefaultConfig().Validate())
}

func TestNew_SeriesExactlyOneWindowLong(t *testing.T) {
	env := newTestEnv(t, testingpkg.ConstantSeries(5, 1, 100), Config{SequenceLength: 5, InitialBalance: 10})

	result := env.Step(domain.ActionHold)
	assert.Nil(t, result.NextState)
	assert.True(t, result.Done)
	assert.Equal(t, 0.0, result.Reward)
}

func TestReset(t *testing.T) {
	series := testingpkg.RampSeries(30, 2, 100, 1)
	env := newTestEnv(t, series, Config{SequenceLength: 10, InitialBalance: 1000, Commission: 0.001})

	env.Step(domain.ActionBuy)
	env.Step(domain.ActionHold)

	window := env.Reset()
	assert.Equal(t, 10, window.Rows())
	assert.Equal(t, 2, window.Cols())
	assert.Equal(t, 9, env.Cursor())
	// Second feature of the stub series is the row index
	assert.Equal(t, 0.0, window.At(0, 1))
	assert.Equal(t, 9.0, window.At(9, 1))
	assert.Equal(t, domain.PortfolioState{CashBalance: 1000, AssetHeld: 0, PortfolioValue: 1000}, env.Portfolio())
	assert.Equal(t, 0, env.Trades())
}

func TestStep_BuyAndSellAllIn(t *testing.T) {
	series := testingpkg.NewStubSeries([]float64{100, 100, 200, 400, 400}, 1)
	env := newTestEnv(t, series, Config{SequenceLength: 2, InitialBalance: 1000, Commission: 0.01})

	// Buy at 200
	result := env.Step(domain.ActionBuy)
	p := env.Portfolio()
	assert.Equal(t, 0.0, p.CashBalance)
	assert.InDelta(t, 1000.0/200*0.99, p.AssetHeld, 1e-12)
	assert.InDelta(t, p.AssetHeld*200, p.PortfolioValue, 1e-9)
	assert.InDelta(t, p.PortfolioValue-1000, result.Reward, 1e-9)
	assertPortfolioInvariant(t, env)

	// Sell at 400
	asset := p.AssetHeld
	before := p.PortfolioValue
	result = env.Step(domain.ActionSell)
	p = env.Portfolio()
	assert.Equal(t, 0.0, p.AssetHeld)
	assert.InDelta(t, asset*400*0.99, p.CashBalance, 1e-9)
	assert.InDelta(t, p.PortfolioValue-before, result.Reward, 1e-9)
	assert.Equal(t, 2, env.Trades())
	assertPortfolioInvariant(t, env)
}

func TestStep_NoOps(t *testing.T) {
	series := testingpkg.RampSeries(10, 1, 100, 5)
	env := newTestEnv(t, series, Config{SequenceLength: 3, InitialBalance: 1000, Commission: 0.001})

	// Sell with nothing held
	result := env.Step(domain.ActionSell)
	assert.Equal(t, domain.PortfolioState{CashBalance: 1000, PortfolioValue: 1000}, env.Portfolio())
	assert.Equal(t, 0.0, result.Reward)

	env.Step(domain.ActionBuy)
	held := env.Portfolio()

	// Buy again with no cash left
	env.Step(domain.ActionBuy)
	assert.Equal(t, held.AssetHeld, env.Portfolio().AssetHeld)
	assert.Equal(t, 0.0, env.Portfolio().CashBalance)
	assert.Equal(t, 1, env.Trades())

	// Unknown actions behave as HOLD
	env.Step(domain.Action(42))
	assert.Equal(t, held.AssetHeld, env.Portfolio().AssetHeld)
	assertPortfolioInvariant(t, env)
}

func TestStep_CommissionNeverIncreasesValue(t *testing.T) {
	series := testingpkg.ConstantSeries(50, 1, 100)

	for _, commission := range []float64{0, 0.001, 0.01, 0.25} {
		env := newTestEnv(t, series, Config{SequenceLength: 5, InitialBalance: 1000, Commission: commission})

		actions := []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionBuy, domain.ActionHold, domain.ActionSell}
		previous := env.Portfolio().PortfolioValue
		for _, a := range actions {
			result := env.Step(a)
			assert.LessOrEqual(t, result.Reward, 1e-9, "commission %v", commission)
			assert.LessOrEqual(t, env.Portfolio().PortfolioValue, previous+1e-9)
			previous = env.Portfolio().PortfolioValue
			assertPortfolioInvariant(t, env)
		}
	}
}

func TestStep_RewardSumsToValueChange(t *testing.T) {
	series := testingpkg.NewStubSeries([]float64{10, 11, 9, 12, 15, 14, 13, 20}, 1)
	env := newTestEnv(t, series, Config{SequenceLength: 2, InitialBalance: 100, Commission: 0.002})

	actions := []domain.Action{domain.ActionBuy, domain.ActionHold, domain.ActionSell, domain.ActionBuy, domain.ActionHold, domain.ActionHold}
	total := 0.0
	for _, a := range actions {
		result := env.Step(a)
		total += result.Reward
		assertPortfolioInvariant(t, env)
	}
	assert.InDelta(t, env.Portfolio().PortfolioValue-100, total, 1e-9)
}

func TestStep_TerminalContract(t *testing.T) {
	series := testingpkg.ConstantSeries(8, 1, 50)
	env := newTestEnv(t, series, Config{SequenceLength: 3, InitialBalance: 10})

	// Cursor starts at 2; rows 3..6 are non-terminal, row 7 is terminal with a window.
	for i := 0; i < 4; i++ {
		result := env.Step(domain.ActionHold)
		require.NotNil(t, result.NextState)
		assert.False(t, result.Done)
	}

	result := env.Step(domain.ActionHold)
	require.NotNil(t, result.NextState)
	assert.True(t, result.Done)
	assert.Equal(t, 7, env.Cursor())

	for i := 0; i < 3; i++ {
		result = env.Step(domain.ActionBuy)
		assert.Nil(t, result.NextState)
		assert.True(t, result.Done)
		assert.Equal(t, 0.0, result.Reward)
		assert.Equal(t, 8, env.Cursor())
	}

	assert.Equal(t, 10.0, env.Portfolio().CashBalance)
	assert.Equal(t, 50.0, env.CurrentPrice())
}

func TestEpisode_BuyHoldSellAtFlatPrice(t *testing.T) {
	series := testingpkg.ConstantSeries(100, 4, 100)
	env := newTestEnv(t, series, Config{SequenceLength: 10, InitialBalance: 1000, Commission: 0})

	result := env.Step(domain.ActionBuy)
	assert.Equal(t, 0.0, result.Reward)
	assert.InDelta(t, 10.0, env.Portfolio().AssetHeld, 1e-12)

	for i := 0; i < 5; i++ {
		result = env.Step(domain.ActionHold)
		assert.Equal(t, 0.0, result.Reward)
	}

	env.Step(domain.ActionSell)
	p := env.Portfolio()
	assert.InDelta(t, 1000.0, p.CashBalance, 1e-9)
	assert.Equal(t, 0.0, p.AssetHeld)
	assert.InDelta(t, 1000.0, p.PortfolioValue, 1e-9)
}

func TestStep_WindowAlignment(t *testing.T) {
	series := testingpkg.RampSeries(12, 2, 1, 1)
	env := newTestEnv(t, series, Config{SequenceLength: 4, InitialBalance: 10})

	result := env.Step(domain.ActionHold)
	require.NotNil(t, result.NextState)
	window := *result.NextState
	assert.Equal(t, 4, window.Rows())
	// Last row of the window is the row the step landed on
	assert.Equal(t, float64(env.Cursor()), window.At(window.Rows()-1, 1))
	assert.Equal(t, series.Close(env.Cursor()), window.At(window.Rows()-1, 0))
}
