// internal/storage/archive/interface.go

// Package archive provides cold storage for finished run records, with
// local-filesystem and S3-compatible backends behind one interface.
package archive

import "context"

// Storage is a flat blob store. Paths use forward slashes regardless of
// backend; the RunArchiver above it decides the layout.
type Storage interface {
	// Write stores an entry at the given path, replacing any existing one.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves the entry at the given path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns the paths of all entries under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the entry at the given path.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an entry exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)
}
