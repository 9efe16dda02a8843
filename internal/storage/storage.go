// Package storage provides the key-value stores that hold the serialized
// review list. Every backend stores plain strings under string keys, like a
// browser's local storage scoped to one origin.
package storage

import (
	"context"
	"errors"
)

// Storage errors
var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// KeyValue is a string key-value store
type KeyValue interface {
	// Get returns ErrNotFound when the key has no value
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
}
