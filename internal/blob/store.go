// Package blob abstracts the content-addressable store holding uploaded
// package bundles. The engine never re-uploads a hash it already holds.
package blob

import (
	"context"
	"io"
)

// Store persists package bundles keyed by their content hash.
type Store interface {
	// Put stores the bundle under its hash and returns a fetchable URL.
	// Storing an already-present hash is a no-op that returns the same URL.
	Put(ctx context.Context, hash string, r io.Reader) (string, int64, error)
	// URL returns the fetchable URL for a stored hash.
	URL(hash string) string
	// Delete removes the bundle for a hash if present.
	Delete(ctx context.Context, hash string) error
}
