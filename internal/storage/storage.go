// Package storage persists client state that must survive a restart:
// session tokens, liked store IDs, filters, the last listing snapshot,
// the display address and the one-shot completed-reservation hand-off.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a JSON key-value store.
type Store interface {
	// Get decodes the value stored under key into out.
	Get(ctx context.Context, key string, out any) error

	// Set encodes value and stores it under key.
	Set(ctx context.Context, key string, value any) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Take reads key into out and deletes it in the same step.
	Take(ctx context.Context, key string, out any) error

	// Clear deletes every key owned by the store.
	Clear(ctx context.Context) error

	// Keys lists stored keys.
	Keys(ctx context.Context) ([]string, error)

	Close() error
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

func decode(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}
