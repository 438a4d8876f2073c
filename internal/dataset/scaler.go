package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Scaler rescales each feature column to [0, 1] using the min and max seen during Fit.
type Scaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// Fit records per-column bounds
func (s *Scaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("cannot fit scaler on empty data")
	}

	width := len(rows[0])
	column := make([]float64, len(rows))
	s.Min = make([]float64, width)
	s.Max = make([]float64, width)

	for j := 0; j < width; j++ {
		for i, row := range rows {
			if len(row) != width {
				return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
			}
			column[i] = row[j]
		}
		s.Min[j] = floats.Min(column)
		s.Max[j] = floats.Max(column)
	}
	return nil
}

// Transform returns scaled copies of rows. Constant columns map to 0.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	if len(s.Min) == 0 {
		return nil, fmt.Errorf("scaler is not fitted")
	}

	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.Min) {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), len(s.Min))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			span := s.Max[j] - s.Min[j]
			if span == 0 {
				continue
			}
			scaled[j] = (v - s.Min[j]) / span
		}
		out[i] = scaled
	}
	return out, nil
}
