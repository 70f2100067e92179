// Package history turns finished analyses into storage records and opens the
// configured storage backend.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/sketchtable/pkg/config"
	"github.com/papercomputeco/sketchtable/pkg/storage"
	"github.com/papercomputeco/sketchtable/pkg/storage/inmemory"
	"github.com/papercomputeco/sketchtable/pkg/storage/postgres"
	"github.com/papercomputeco/sketchtable/pkg/storage/sqlite"
	"github.com/papercomputeco/sketchtable/pkg/stream"
)

// Backend names reported by OpenDriver.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// NewRecord converts a finished stream into a storage record. imagePath is
// the sketch the request was built from, if any.
func NewRecord(res stream.Result, imagePath string) *storage.Record {
	rec := &storage.Record{
		ID:         res.ID,
		ImagePath:  imagePath,
		Prompt:     promptText(res),
		Model:      res.Request.Payload.Model,
		Endpoint:   res.Request.Endpoint,
		State:      res.State.String(),
		Text:       res.Text,
		Tokens:     res.Usage.Tokens,
		CostUSD:    res.Usage.CostUSD,
		Deltas:     res.Deltas,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}

	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if !res.Table.Empty() {
		t := res.Table.Clone()
		rec.TableHeader = t.Header
		rec.TableRows = t.Rows
	}

	return rec
}

// promptText returns the text of the last user message in the request.
func promptText(res stream.Result) string {
	msgs := res.Request.Payload.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].GetText()
		}
	}
	return ""
}

// OpenDriver opens the storage backend selected by cfg. PostgresDSN wins over
// SQLitePath; with neither set an in-memory driver is returned. Relative
// SQLite paths are resolved against baseDir.
func OpenDriver(ctx context.Context, cfg config.StorageConfig, baseDir string) (storage.Driver, string, error) {
	switch {
	case cfg.PostgresDSN != "":
		d, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, "", fmt.Errorf("opening postgres history: %w", err)
		}
		return d, BackendPostgres, nil

	case cfg.SQLitePath != "":
		path := cfg.SQLitePath
		if path != ":memory:" && !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, "", fmt.Errorf("creating history dir: %w", err)
			}
		}
		d, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, "", fmt.Errorf("opening sqlite history: %w", err)
		}
		return d, BackendSQLite, nil

	default:
		return inmemory.NewDriver(), BackendMemory, nil
	}
}
