// Package approximator provides action-value function implementations.
package approximator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/aristath/orium/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when windows or targets do not match the model's dimensions.
var ErrShapeMismatch = errors.New("shape mismatch")

// ErrDiverged is returned when a training step would produce non-finite parameters.
var ErrDiverged = errors.New("training step diverged")

const formatVersion = 1

// Linear is a linear action-value model over the flattened observation window.
// Each action value is a dot product of the window with a weight column plus a bias.
// It is not safe for concurrent use.
type Linear struct {
	inputDim     int
	learningRate float64
	weights      *mat.Dense // (inputDim+1) x NumActions, last row is the bias
}

// NewLinear creates a model for windows of inputDim values with small random weights.
func NewLinear(inputDim int, learningRate float64, rng *rand.Rand) (*Linear, error) {
	var errs domain.ValidationErrors
	if inputDim <= 0 {
		errs = append(errs, domain.ValidationError{Field: "input_dim", Message: "must be greater than 0"})
	}
	if math.IsNaN(learningRate) || learningRate <= 0 {
		errs = append(errs, domain.ValidationError{Field: "learning_rate", Message: "must be greater than 0"})
	}
	if rng == nil {
		errs = append(errs, domain.ValidationError{Field: "rng", Message: "is required"})
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	scale := 1 / math.Sqrt(float64(inputDim))
	data := make([]float64, (inputDim+1)*domain.NumActions)
	for i := range data[:inputDim*domain.NumActions] {
		data[i] = (rng.Float64()*2 - 1) * scale * 0.1
	}

	return &Linear{
		inputDim:     inputDim,
		learningRate: learningRate,
		weights:      mat.NewDense(inputDim+1, domain.NumActions, data),
	}, nil
}

// InputDim returns the flattened window size the model expects
func (l *Linear) InputDim() int { return l.inputDim }

// LearningRate returns the gradient step size
func (l *Linear) LearningRate() float64 { return l.learningRate }

// Predict returns one vector of NumActions values per window.
func (l *Linear) Predict(ctx context.Context, windows []domain.ObservationWindow) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return [][]float64{}, nil
	}

	x, err := l.design(windows)
	if err != nil {
		return nil, err
	}

	var out mat.Dense
	out.Mul(x, l.weights)

	result := make([][]float64, len(windows))
	for i := range result {
		result[i] = mat.Row(nil, i, &out)
	}
	return result, nil
}

// Fit performs one mean-squared-error gradient step toward targets.
// Parameters are only replaced once the whole update has been computed and checked.
func (l *Linear) Fit(ctx context.Context, windows []domain.ObservationWindow, targets [][]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(windows) == 0 {
		return fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	if len(windows) != len(targets) {
		return fmt.Errorf("%w: %d windows but %d targets", ErrShapeMismatch, len(windows), len(targets))
	}

	x, err := l.design(windows)
	if err != nil {
		return err
	}

	y := mat.NewDense(len(targets), domain.NumActions, nil)
	for i, t := range targets {
		if len(t) != domain.NumActions {
			return fmt.Errorf("%w: target %d has %d values, expected %d", ErrShapeMismatch, i, len(t), domain.NumActions)
		}
		y.SetRow(i, t)
	}

	// grad = 2/n * Xᵀ (XW - Y)
	var residual mat.Dense
	residual.Mul(x, l.weights)
	residual.Sub(&residual, y)

	var grad mat.Dense
	grad.Mul(x.T(), &residual)

	var updated mat.Dense
	updated.Scale(-2*l.learningRate/float64(len(windows)), &grad)
	updated.Add(l.weights, &updated)

	raw := updated.RawMatrix().Data
	if floats.HasNaN(raw) || math.IsInf(floats.Max(raw), 1) || math.IsInf(floats.Min(raw), -1) {
		return ErrDiverged
	}

	l.weights = &updated
	return nil
}

// design builds the batch matrix with a trailing bias column of ones.
func (l *Linear) design(windows []domain.ObservationWindow) (*mat.Dense, error) {
	cols := l.inputDim + 1
	data := make([]float64, 0, len(windows)*cols)
	for i, w := range windows {
		if w.Size() != l.inputDim {
			return nil, fmt.Errorf("%w: window %d has %d values, expected %d", ErrShapeMismatch, i, w.Size(), l.inputDim)
		}
		data = w.AppendTo(data)
		data = append(data, 1)
	}
	return mat.NewDense(len(windows), cols, data), nil
}

type linearState struct {
	Version      int       `msgpack:"version"`
	InputDim     int       `msgpack:"input_dim"`
	Actions      int       `msgpack:"actions"`
	LearningRate float64   `msgpack:"learning_rate"`
	Weights      []float64 `msgpack:"weights"`
}

// Save writes the model parameters as msgpack.
func (l *Linear) Save(w io.Writer) error {
	state := linearState{
		Version:      formatVersion,
		InputDim:     l.inputDim,
		Actions:      domain.NumActions,
		LearningRate: l.learningRate,
		Weights:      mat.DenseCopyOf(l.weights).RawMatrix().Data,
	}
	if err := msgpack.NewEncoder(w).Encode(&state); err != nil {
		return fmt.Errorf("failed to encode linear model: %w", err)
	}
	return nil
}

// Load replaces the parameters with those read from r.
// The stored dimensions must match this model. The learning rate is kept.
func (l *Linear) Load(r io.Reader) error {
	var state linearState
	if err := msgpack.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode linear model: %w", err)
	}

	if state.Version != formatVersion {
		return fmt.Errorf("unsupported model format version %d", state.Version)
	}
	if state.InputDim != l.inputDim || state.Actions != domain.NumActions {
		return fmt.Errorf("%w: stored model is %dx%d, expected %dx%d",
			ErrShapeMismatch, state.InputDim, state.Actions, l.inputDim, domain.NumActions)
	}
	if len(state.Weights) != (state.InputDim+1)*state.Actions {
		return fmt.Errorf("%w: stored model has %d weights", ErrShapeMismatch, len(state.Weights))
	}

	l.weights = mat.NewDense(l.inputDim+1, domain.NumActions, state.Weights)
	return nil
}
