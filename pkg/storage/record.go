package storage

import (
	"errors"
	"time"
)

// Record is one finished analysis.
type Record struct {
	ID string `json:"id"`

	ImagePath string `json:"image_path,omitempty"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	Endpoint  string `json:"endpoint"`

	// State is the terminal coordinator state, "completed" or "failed".
	State string `json:"state"`
	Error string `json:"error,omitempty"`

	Text        string     `json:"text"`
	TableHeader []string   `json:"table_header,omitempty"`
	TableRows   [][]string `json:"table_rows,omitempty"`

	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
	Deltas  int     `json:"deltas"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Validate reports whether rec can be stored.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("cannot store nil record")
	}
	if r.ID == "" {
		return errors.New("record has no id")
	}
	return nil
}

// Duration is the wall time the analysis took.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
