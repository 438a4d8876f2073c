package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/aristath/orium/internal/domain"
)

// Prepare builds a normalized feature series from bars.
// The returned scaler carries the bounds used so live data can be normalized the same way.
func Prepare(bars []Bar) (*Series, *Scaler, error) {
	if len(bars) == 0 {
		return nil, nil, fmt.Errorf("%w: no bars to prepare", domain.ErrInsufficientData)
	}

	features := BuildFeatures(bars)

	scaler := &Scaler{}
	if err := scaler.Fit(features); err != nil {
		return nil, nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	normalized, err := scaler.Transform(features)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to normalize features: %w", err)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	series, err := NewSeries(closes, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build series: %w", err)
	}
	return series, scaler, nil
}

// LoadFile reads a CSV export from disk and prepares it
func LoadFile(path string, opts LoadOptions) (*Series, *Scaler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return load(f, opts)
}

func load(r io.Reader, opts LoadOptions) (*Series, *Scaler, error) {
	bars, err := LoadCSV(r, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return Prepare(bars)
}
