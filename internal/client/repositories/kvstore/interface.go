package kvstore

import (
	"context"
)

// Repository is the device's durable string-keyed storage. It has no notion
// of structure; callers own serialization and key naming.
type Repository interface {
	// Get returns the stored value or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes all keys in one transaction.
	DeleteMany(ctx context.Context, keys []string) error
	// List returns every stored pair.
	List(ctx context.Context) (map[string][]byte, error)
}
