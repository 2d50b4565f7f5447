// Package blob archives raw rendered HTML so pages can be reprocessed without
// refetching. The Provider abstraction keeps the archiver independent of the
// backing store (Google Cloud Storage or the local filesystem).
package blob

import (
	"context"
)

// Provider saves a named object to a blob store.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards every object. Useful for dry runs and tests.
type NoOpProvider struct{}

// Save does nothing and always returns nil.
func (NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
