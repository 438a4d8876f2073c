package approximator

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/aristath/orium/internal/domain"
	testingpkg "github.com/aristath/orium/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLinear(t *testing.T, inputDim int, lr float64) *Linear {
	t.Helper()
	l, err := NewLinear(inputDim, lr, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	return l
}

func TestNewLinear_Validation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewLinear(0, 0.1, rng)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))

	_, err = NewLinear(4, 0, rng)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))

	_, err = NewLinear(4, 0.1, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

func TestLinear_PredictShape(t *testing.T) {
	l := newTestLinear(t, 2, 0.01)

	out, err := l.Predict(context.Background(), []domain.ObservationWindow{
		testingpkg.NewWindow(1, 2),
		testingpkg.NewWindow(3, 4),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, v := range out {
		assert.Len(t, v, domain.NumActions)
	}

	empty, err := l.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = l.Predict(context.Background(), []domain.ObservationWindow{testingpkg.NewWindow(1, 2, 3)})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestLinear_PredictIsPure(t *testing.T) {
	l := newTestLinear(t, 3, 0.01)
	windows := []domain.ObservationWindow{testingpkg.NewWindow(0.1, 0.2, 0.3)}

	first, err := l.Predict(context.Background(), windows)
	require.NoError(t, err)
	second, err := l.Predict(context.Background(), windows)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLinear_FitReducesError(t *testing.T) {
	l := newTestLinear(t, 2, 0.1)
	ctx := context.Background()

	windows := []domain.ObservationWindow{
		testingpkg.NewWindow(0, 1),
		testingpkg.NewWindow(1, 0),
		testingpkg.NewWindow(1, 1),
	}
	targets := [][]float64{
		{1, 0, 0.5},
		{0, 1, 0.5},
		{1, 1, 1},
	}

	loss := func() float64 {
		out, err := l.Predict(ctx, windows)
		require.NoError(t, err)
		total := 0.0
		for i := range out {
			for j := range out[i] {
				d := out[i][j] - targets[i][j]
				total += d * d
			}
		}
		return total
	}

	before := loss()
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Fit(ctx, windows, targets))
	}
	after := loss()

	assert.Less(t, after, before)
	assert.Less(t, after, 0.05)
	assert.Equal(t, []float64{1, 0, 0.5}, targets[0], "targets are not modified")
}

func TestLinear_FitRejectsBadShapesAtomically(t *testing.T) {
	l := newTestLinear(t, 2, 0.1)
	ctx := context.Background()
	probe := []domain.ObservationWindow{testingpkg.NewWindow(0.5, 0.5)}

	before, err := l.Predict(ctx, probe)
	require.NoError(t, err)

	tests := []struct {
		name    string
		windows []domain.ObservationWindow
		targets [][]float64
	}{
		{"empty", nil, nil},
		{"count mismatch", []domain.ObservationWindow{testingpkg.NewWindow(1, 1)}, [][]float64{{1, 1, 1}, {1, 1, 1}}},
		{"window size", []domain.ObservationWindow{testingpkg.NewWindow(1)}, [][]float64{{1, 1, 1}}},
		{"target width", []domain.ObservationWindow{testingpkg.NewWindow(1, 1)}, [][]float64{{1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Fit(ctx, tt.windows, tt.targets)
			assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
		})
	}

	after, err := l.Predict(ctx, probe)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLinear_FitRejectsDivergence(t *testing.T) {
	l := newTestLinear(t, 1, 0.5)
	ctx := context.Background()
	probe := []domain.ObservationWindow{testingpkg.NewWindow(1)}

	before, err := l.Predict(ctx, probe)
	require.NoError(t, err)

	err = l.Fit(ctx, probe, [][]float64{{math.Inf(1), 0, 0}})
	assert.True(t, errors.Is(err, ErrDiverged))

	after, err := l.Predict(ctx, probe)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLinear_CanceledContext(t *testing.T) {
	l := newTestLinear(t, 1, 0.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Predict(ctx, []domain.ObservationWindow{testingpkg.NewWindow(1)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, l.Fit(ctx, []domain.ObservationWindow{testingpkg.NewWindow(1)}, [][]float64{{0, 0, 0}}), context.Canceled)
}

func TestLinear_SaveLoad(t *testing.T) {
	ctx := context.Background()
	src := newTestLinear(t, 3, 0.05)
	windows := []domain.ObservationWindow{testingpkg.NewWindow(0.3, 0.6, 0.9)}
	require.NoError(t, src.Fit(ctx, windows, [][]float64{{1, 2, 3}}))

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	dst, err := NewLinear(3, 0.05, rand.New(rand.NewSource(1234)))
	require.NoError(t, err)
	require.NoError(t, dst.Load(bytes.NewReader(buf.Bytes())))

	want, err := src.Predict(ctx, windows)
	require.NoError(t, err)
	got, err := dst.Predict(ctx, windows)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLinear_LoadRejectsMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newTestLinear(t, 4, 0.1).Save(&buf))

	other := newTestLinear(t, 2, 0.1)
	err := other.Load(bytes.NewReader(buf.Bytes()))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	assert.Error(t, other.Load(bytes.NewReader([]byte("not msgpack"))))
}
