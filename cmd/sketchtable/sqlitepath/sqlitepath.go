// Package sqlitepath locates an existing SQLite history database when none
// is configured.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no candidate database exists.
var ErrNotFound = errors.New("could not find sketchtable history database; pass --sqlite")

// ResolveSQLitePath returns override if set, then SKETCHTABLE_SQLITE, then
// the first existing candidate file.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("SKETCHTABLE_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

func sqliteCandidates() []string {
	candidates := []string{
		"history.db",
		filepath.Join(".sketchtable", "history.db"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".sketchtable", "history.db"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "sketchtable", "history.db"),
		}, candidates...)
	}

	return candidates
}
