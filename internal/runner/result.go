package runner

import "time"

// Sink receives a run's output as it arrives: raw stdout chunks, stderr
// chunks prefixed with "ERROR: ", and the synthetic completion messages.
type Sink interface {
	Emit(text string)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(text string)

// Emit calls f(text).
func (f SinkFunc) Emit(text string) { f(text) }

// Discard is a Sink that drops everything. Accumulators still capture
// the output, so callers that only poll can use it.
var Discard Sink = SinkFunc(func(string) {})

// Result holds the outcome of a completed tool run. A non-zero exit code
// or stderr output is a normal outcome at this layer, not an error.
type Result struct {
	RunID        string        `json:"run_id"`
	Tool         string        `json:"tool"`
	ExitCode     int           `json:"exit_code"` // -1 when terminated by a signal
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
	CreatedFiles []string      `json:"created_files"` // absolute paths that exist on disk
	Truncated    bool          `json:"truncated"`     // an accumulator hit its cap
	Stopped      bool          `json:"stopped"`       // Stop was called on this run
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}
