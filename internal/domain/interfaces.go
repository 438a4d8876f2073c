package domain

import (
	"context"
	"io"
)

// FeatureSeries is an ordered, already-normalized table of per-minute observations.
// Implementations are read-only once constructed.
type FeatureSeries interface {
	// Len returns the number of rows
	Len() int

	// NumFeatures returns the width of every row
	NumFeatures() int

	// Close returns the close price used for portfolio accounting at row i
	Close(i int) float64

	// Window returns the length rows ending at (and including) row end
	Window(end, length int) ObservationWindow
}

// Approximator maps observation windows to per-action value estimates.
// Any model (linear, tree ensemble, network) can back it.
type Approximator interface {
	// Predict returns one NumActions-long vector per window. It has no observable side effects.
	Predict(ctx context.Context, windows []ObservationWindow) ([][]float64, error)

	// Fit performs exactly one training step toward targets.
	// It must not mutate its inputs and leaves the model unchanged when it fails.
	Fit(ctx context.Context, windows []ObservationWindow, targets [][]float64) error

	// Save writes the model in an implementation-defined format
	Save(w io.Writer) error

	// Load replaces the model with one previously written by Save
	Load(r io.Reader) error
}
