// Package persist stores the serialized client state under a single namespace.
package persist

import (
	"context"
	"errors"
)

// DefaultNamespace is the fixed key the client state is stored under.
const DefaultNamespace = "diabetes-companion/state"

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("persist: nothing stored")

type Repository interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}
