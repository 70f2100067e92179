// Package storage persists finished analyses so they can be listed and
// replayed by the history commands.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving analysis
// records in a storage backend.
type Driver interface {
	// Put stores a record. Returns true if the record was newly inserted,
	// false if a record with the same ID already exists. Put is a no-op for
	// existing records.
	Put(ctx context.Context, rec *Record) (bool, error)

	// Get retrieves a record by its ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Has checks if a record exists by its ID.
	Has(ctx context.Context, id string) (bool, error)

	// List returns records newest first. A limit <= 0 returns every record.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Delete removes a record by its ID.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
