package dataset

import (
	"fmt"
	"math"

	"github.com/aristath/orium/internal/domain"
)

// Series is an immutable feature table that implements domain.FeatureSeries.
// Observation windows are cut from a single row-major backing slice without copying.
type Series struct {
	closes   []float64
	data     []float64
	rows     int
	features int
}

// NewSeries builds a series from raw close prices and normalized feature rows.
// Closes drive portfolio accounting; rows drive observations.
func NewSeries(closes []float64, rows [][]float64) (*Series, error) {
	if len(closes) != len(rows) {
		return nil, fmt.Errorf("closes has %d entries but rows has %d", len(closes), len(rows))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: series is empty", domain.ErrInsufficientData)
	}

	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("rows must have at least one feature")
	}

	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		if c := closes[i]; math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
			return nil, fmt.Errorf("row %d has non-positive or non-finite close %v", i, c)
		}
		data = append(data, row...)
	}

	c := make([]float64, len(closes))
	copy(c, closes)

	return &Series{
		closes:   c,
		data:     data,
		rows:     len(rows),
		features: width,
	}, nil
}

// Len returns the number of rows
func (s *Series) Len() int { return s.rows }

// NumFeatures returns the number of features per row
func (s *Series) NumFeatures() int { return s.features }

// Close returns the raw close price at row i
func (s *Series) Close(i int) float64 { return s.closes[i] }

// Window returns the length rows ending at row end.
func (s *Series) Window(end, length int) domain.ObservationWindow {
	start := end - length + 1
	if length <= 0 || start < 0 || end >= s.rows {
		panic(fmt.Sprintf("dataset: window [%d, %d] out of range for %d rows", start, end, s.rows))
	}
	return domain.NewObservationWindow(s.data[start*s.features:(end+1)*s.features], length, s.features)
}
