package testing

import (
	"fmt"

	"github.com/aristath/orium/internal/domain"
)

// StubSeries is an in-memory domain.FeatureSeries for tests.
// Row i holds the close price followed by the row index and then zeros.
type StubSeries struct {
	closes   []float64
	data     []float64
	features int
}

// NewStubSeries builds a series over closes with the given number of features (at least 1)
func NewStubSeries(closes []float64, features int) *StubSeries {
	if features < 1 {
		features = 1
	}
	data := make([]float64, len(closes)*features)
	for i, c := range closes {
		data[i*features] = c
		if features > 1 {
			data[i*features+1] = float64(i)
		}
	}
	return &StubSeries{closes: closes, data: data, features: features}
}

// ConstantSeries returns rows bars that all close at price
func ConstantSeries(rows, features int, price float64) *StubSeries {
	closes := make([]float64, rows)
	for i := range closes {
		closes[i] = price
	}
	return NewStubSeries(closes, features)
}

// RampSeries returns rows bars starting at start and moving by step each bar
func RampSeries(rows, features int, start, step float64) *StubSeries {
	closes := make([]float64, rows)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return NewStubSeries(closes, features)
}

func (s *StubSeries) Len() int            { return len(s.closes) }
func (s *StubSeries) NumFeatures() int    { return s.features }
func (s *StubSeries) Close(i int) float64 { return s.closes[i] }

func (s *StubSeries) Window(end, length int) domain.ObservationWindow {
	start := end - length + 1
	if start < 0 || end >= len(s.closes) {
		panic(fmt.Sprintf("stub series: window [%d, %d] out of range", start, end))
	}
	return domain.NewObservationWindow(s.data[start*s.features:(end+1)*s.features], length, s.features)
}

// NewWindow builds a single-row window holding values
func NewWindow(values ...float64) domain.ObservationWindow {
	data := make([]float64, len(values))
	copy(data, values)
	return domain.NewObservationWindow(data, 1, len(values))
}

// NewTransition builds a transition between two single-feature windows
func NewTransition(state, next float64, action domain.Action, reward float64, done bool) domain.Transition {
	return domain.Transition{
		State:     NewWindow(state),
		Action:    action,
		Reward:    reward,
		NextState: NewWindow(next),
		Done:      done,
	}
}
