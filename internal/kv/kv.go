// Package kv persists small client-side values such as the auth token and
// dashboard preferences.
package kv

import (
	"context"
	"errors"
)

// TokenKey is the key the auth token is stored under.
const TokenKey = "SPHINX_TOKEN"

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}
