// Package artifacts persists model checkpoints to local disk or S3-compatible storage.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aristath/orium/internal/domain"
)

// ErrNotFound is returned by Get when no artifact exists under the key.
var ErrNotFound = errors.New("artifact not found")

// Store is a flat key/value blob store
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// SaveModel serializes approx and stores it under key.
func SaveModel(ctx context.Context, store Store, key string, approx domain.Approximator) error {
	var buf bytes.Buffer
	if err := approx.Save(&buf); err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	if err := store.Put(ctx, key, &buf); err != nil {
		return fmt.Errorf("failed to store model %s: %w", key, err)
	}
	return nil
}

// LoadModel restores approx from the artifact under key.
// It returns ErrNotFound, unwrapped via errors.Is, when nothing was stored yet.
func LoadModel(ctx context.Context, store Store, key string, approx domain.Approximator) error {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch model %s: %w", key, err)
	}
	defer rc.Close()

	if err := approx.Load(rc); err != nil {
		return fmt.Errorf("failed to restore model %s: %w", key, err)
	}
	return nil
}
