package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig marks invalid hyperparameters or constructor arguments.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInsufficientData is returned when a series is shorter than one observation window.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrSampleUnderflow is returned when a replay buffer cannot satisfy a sample request.
	ErrSampleUnderflow = errors.New("sample underflow")

	// ErrApproximator marks failures raised by the approximator's Predict or Fit.
	ErrApproximator = errors.New("approximator failure")
)

// ValidationError represents a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrInvalidConfig.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ValidationErrors collects every invalid field found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(messages, "; "))
}

// Is makes ValidationErrors match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// OrNil returns nil when no errors were collected.
func (e ValidationErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ApproximatorError wraps an error returned by Approximator.Predict or Approximator.Fit.
// The original error is kept intact and reachable through errors.Unwrap.
type ApproximatorError struct {
	Op  string
	Err error
}

func (e *ApproximatorError) Error() string {
	return fmt.Sprintf("approximator %s: %v", e.Op, e.Err)
}

func (e *ApproximatorError) Unwrap() error {
	return e.Err
}

// Is makes ApproximatorError match ErrApproximator.
func (e *ApproximatorError) Is(target error) bool {
	return target == ErrApproximator
}
