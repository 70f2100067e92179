package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastFile = "last.json"
)

// LastAnalysis is the input of the most recent analysis, persisted so that
// "sketchtable analyze" without arguments can repeat it.
type LastAnalysis struct {
	// ID of the history record the analysis produced.
	ID string `json:"id,omitempty"`

	ImagePath string    `json:"image_path"`
	Prompt    string    `json:"prompt"`
	StartedAt time.Time `json:"started_at"`
}

// LoadLastAnalysis loads .sketchtable/last.json.
// Returns nil, nil if no analysis has been run yet.
func (m *Manager) LoadLastAnalysis(overrideDir string) (*LastAnalysis, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, lastFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last analysis: %w", err)
	}

	state := &LastAnalysis{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing last analysis: %w", err)
	}

	return state, nil
}

// SaveLastAnalysis persists state to .sketchtable/last.json.
func (m *Manager) SaveLastAnalysis(state *LastAnalysis, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil analysis state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last analysis: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, lastFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last analysis: %w", err)
	}

	return nil
}

// ClearLastAnalysis removes the state file. Returns nil if it doesn't exist.
func (m *Manager) ClearLastAnalysis(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, lastFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last analysis: %w", err)
	}

	return nil
}
