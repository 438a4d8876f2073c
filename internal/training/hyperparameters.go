package training

import (
	"math"

	"github.com/aristath/orium/internal/domain"
)

// Hyperparameters configures the learning schedule. It is read once and never mutated.
type Hyperparameters struct {
	Gamma        float64 `json:"gamma"`
	EpsilonStart float64 `json:"epsilon_start"`
	EpsilonEnd   float64 `json:"epsilon_end"`
	EpsilonDecay float64 `json:"epsilon_decay"`
	MemorySize   int     `json:"memory_size"`
	BatchSize    int     `json:"batch_size"`
	NumEpisodes  int     `json:"num_episodes"`
}

// DefaultHyperparameters returns the stock learning schedule
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Gamma:        0.95,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.01,
		EpsilonDecay: 0.995,
		MemorySize:   10000,
		BatchSize:    64,
		NumEpisodes:  50,
	}
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Validate checks the hyperparameters and reports every invalid field at once.
func (h Hyperparameters) Validate() error {
	var errs domain.ValidationErrors

	if !inUnitInterval(h.Gamma) {
		errs = append(errs, domain.ValidationError{Field: "gamma", Message: "must be in [0, 1]"})
	}
	if !inUnitInterval(h.EpsilonStart) {
		errs = append(errs, domain.ValidationError{Field: "epsilon_start", Message: "must be in [0, 1]"})
	}
	if !inUnitInterval(h.EpsilonEnd) {
		errs = append(errs, domain.ValidationError{Field: "epsilon_end", Message: "must be in [0, 1]"})
	} else if h.EpsilonEnd > h.EpsilonStart {
		errs = append(errs, domain.ValidationError{Field: "epsilon_end", Message: "must not exceed epsilon_start"})
	}
	if math.IsNaN(h.EpsilonDecay) || h.EpsilonDecay <= 0 || h.EpsilonDecay > 1 {
		errs = append(errs, domain.ValidationError{Field: "epsilon_decay", Message: "must be in (0, 1]"})
	}
	if h.MemorySize <= 0 {
		errs = append(errs, domain.ValidationError{Field: "memory_size", Message: "must be greater than 0"})
	}
	if h.BatchSize <= 0 {
		errs = append(errs, domain.ValidationError{Field: "batch_size", Message: "must be greater than 0"})
	} else if h.MemorySize > 0 && h.BatchSize >= h.MemorySize {
		// Learning starts once the buffer holds more than a batch
		errs = append(errs, domain.ValidationError{Field: "batch_size", Message: "must be less than memory_size"})
	}
	if h.NumEpisodes <= 0 {
		errs = append(errs, domain.ValidationError{Field: "num_episodes", Message: "must be greater than 0"})
	}

	return errs.OrNil()
}

// NextEpsilon applies one geometric decay step, floored at EpsilonEnd.
func (h Hyperparameters) NextEpsilon(epsilon float64) float64 {
	return math.Max(h.EpsilonEnd, epsilon*h.EpsilonDecay)
}
