// Package inmemory provides a map-backed storage driver. It is used when no
// database is configured and in tests.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/sketchtable/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	records map[string]*storage.Record
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.Record),
	}
}

// Put stores a copy of rec. Returns false if the ID was already stored.
func (s *Driver) Put(_ context.Context, rec *storage.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return false, nil
	}

	s.records[rec.ID] = clone(rec)
	return true, nil
}

// Get retrieves a record by its ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return clone(rec), nil
}

// Has checks if a record exists by its ID.
func (s *Driver) Has(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[id]
	return ok, nil
}

// List returns records newest first.
func (s *Driver) List(_ context.Context, limit int) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*storage.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, clone(rec))
	}

	slices.SortFunc(records, func(a, b *storage.Record) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Delete removes a record by its ID.
func (s *Driver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.NotFoundError{ID: id}
	}
	delete(s.records, id)
	return nil
}

// Count returns the number of records in the in-memory store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the in-memory storer.
func (s *Driver) Close() error {
	return nil
}

func clone(rec *storage.Record) *storage.Record {
	c := *rec
	c.TableHeader = slices.Clone(rec.TableHeader)
	if rec.TableRows != nil {
		c.TableRows = make([][]string, len(rec.TableRows))
		for i, row := range rec.TableRows {
			c.TableRows[i] = slices.Clone(row)
		}
	}
	return &c
}
