// Package history persists and retrieves completed tool run records.
package history

import "time"

// Record is the persisted form of one completed tool run.
type Record struct {
	ID           string        `json:"id"`
	Tool         string        `json:"tool"`
	ExitCode     int           `json:"exit_code"`
	Stdout       string        `json:"stdout,omitempty"`
	Stderr       string        `json:"stderr,omitempty"`
	CreatedFiles []string      `json:"created_files,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`
	Stopped      bool          `json:"stopped,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// Store persists and retrieves run records.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
}
