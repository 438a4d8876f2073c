package artifacts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aristath/orium/internal/dataset"
	"github.com/vmihailenco/msgpack/v5"
)

// ScalerKey returns the key of the feature scaler stored next to a model
func ScalerKey(modelKey string) string {
	return modelKey + ".scaler"
}

// SaveScaler stores the min-max bounds the model's inputs were normalized with.
func SaveScaler(ctx context.Context, store Store, key string, scaler *dataset.Scaler) error {
	if scaler == nil || len(scaler.Min) == 0 {
		return fmt.Errorf("scaler is not fitted")
	}

	data, err := msgpack.Marshal(scaler)
	if err != nil {
		return fmt.Errorf("failed to encode scaler: %w", err)
	}
	if err := store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store scaler %s: %w", key, err)
	}
	return nil
}

// LoadScaler reads a scaler written by SaveScaler
func LoadScaler(ctx context.Context, store Store, key string) (*dataset.Scaler, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scaler %s: %w", key, err)
	}
	defer rc.Close()

	var scaler dataset.Scaler
	if err := msgpack.NewDecoder(rc).Decode(&scaler); err != nil {
		return nil, fmt.Errorf("failed to decode scaler %s: %w", key, err)
	}
	if len(scaler.Min) != len(scaler.Max) {
		return nil, fmt.Errorf("scaler %s has %d minimums but %d maximums", key, len(scaler.Min), len(scaler.Max))
	}
	return &scaler, nil
}
