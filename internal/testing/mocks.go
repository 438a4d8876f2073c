package testing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aristath/orium/internal/domain"
)

// FitCall captures the arguments of one MockApproximator.Fit call
type FitCall struct {
	Windows []domain.ObservationWindow
	Targets [][]float64
}

// MockApproximator is a mock implementation of domain.Approximator for testing.
// Predict returns a fixed vector per window unless PredictFunc is set.
type MockApproximator struct {
	mu           sync.RWMutex
	values       []float64
	predictFunc  func(domain.ObservationWindow) []float64
	predictCalls int
	fitCalls     []FitCall
	saved        []byte
	predictErr   error
	fitErr       error
	err          error
}

// NewMockApproximator creates a mock that predicts values for every window
func NewMockApproximator(values ...float64) *MockApproximator {
	if len(values) == 0 {
		values = make([]float64, domain.NumActions)
	}
	return &MockApproximator{values: values, saved: []byte("mock-model")}
}

// SetValues sets the vector returned by Predict
func (m *MockApproximator) SetValues(values ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = values
}

// SetPredictFunc makes Predict compute each vector from its window
func (m *MockApproximator) SetPredictFunc(fn func(domain.ObservationWindow) []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictFunc = fn
}

// SetError sets the error returned by every operation
func (m *MockApproximator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPredictError sets the error returned by Predict only
func (m *MockApproximator) SetPredictError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictErr = err
}

// SetFitError sets the error returned by Fit only
func (m *MockApproximator) SetFitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitErr = err
}

// Predict returns one vector per window
func (m *MockApproximator) Predict(ctx context.Context, windows []domain.ObservationWindow) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictCalls++
	if m.err != nil {
		return nil, m.err
	}
	if m.predictErr != nil {
		return nil, m.predictErr
	}

	out := make([][]float64, len(windows))
	for i, w := range windows {
		if m.predictFunc != nil {
			out[i] = m.predictFunc(w)
			continue
		}
		v := make([]float64, len(m.values))
		copy(v, m.values)
		out[i] = v
	}
	return out, nil
}

// Fit records the call
func (m *MockApproximator) Fit(ctx context.Context, windows []domain.ObservationWindow, targets [][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.fitErr != nil {
		return m.fitErr
	}
	if len(windows) != len(targets) {
		return fmt.Errorf("mock: %d windows but %d targets", len(windows), len(targets))
	}

	call := FitCall{
		Windows: append([]domain.ObservationWindow(nil), windows...),
		Targets: make([][]float64, len(targets)),
	}
	for i, t := range targets {
		call.Targets[i] = append([]float64(nil), t...)
	}
	m.fitCalls = append(m.fitCalls, call)
	return nil
}

// Save writes the stored payload
func (m *MockApproximator) Save(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return m.err
	}
	_, err := w.Write(m.saved)
	return err
}

// Load replaces the stored payload
func (m *MockApproximator) Load(r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.saved = data
	return nil
}

// FitCalls returns the recorded Fit calls
func (m *MockApproximator) FitCalls() []FitCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FitCall(nil), m.fitCalls...)
}

// PredictCalls returns how many times Predict was called
func (m *MockApproximator) PredictCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.predictCalls
}

// Payload returns the bytes last loaded or the default payload
func (m *MockApproximator) Payload() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.saved...)
}
