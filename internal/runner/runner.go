// Package runner supervises tool child processes: it spawns them from
// translated invocations, relays their output to a caller-supplied sink
// in arrival order, resolves reported artifacts after exit, and supports
// best-effort cancellation.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deixis/scribe/internal/history"
	"github.com/deixis/scribe/internal/toolkit"
)

// Supervisor owns the table of live tool runs. Construct one per
// application with NewSupervisor and share it; the zero value is not
// usable.
type Supervisor struct {
	toolkit   *toolkit.Toolkit
	maxOutput int           // per-stream accumulator cap in bytes; 0 = unbounded
	history   history.Store // nil disables run persistence

	mu   sync.Mutex
	live map[string]*run
}

// NewSupervisor creates a Supervisor over the given toolkit. maxOutput
// caps each accumulator (0 for unbounded); hist, when non-nil, receives
// a record for every completed run.
func NewSupervisor(tk *toolkit.Toolkit, maxOutput int, hist history.Store) *Supervisor {
	return &Supervisor{
		toolkit:   tk,
		maxOutput: maxOutput,
		history:   hist,
		live:      make(map[string]*run),
	}
}

// run is one live tool invocation.
type run struct {
	id        string
	tool      string
	cmd       *exec.Cmd
	tracking  string
	startedAt time.Time
	stopped   atomic.Bool

	// mu serializes sink delivery and accumulator appends across the
	// two stream pumps, preserving arrival order end to end.
	mu     sync.Mutex
	sink   Sink
	stdout limitBuffer
	stderr limitBuffer
}

// Start translates the tool and option bag into a command line, spawns
// the process with no shell interpolation, registers it, and returns the
// run ID immediately. The result arrives on the returned channel once
// the process exits; Start itself never waits for completion.
//
// Translation and spawn failures are returned as errors, mirrored to the
// sink, and leave nothing registered. Match them with errors.As against
// toolkit.ErrToolNotFound and toolkit.ErrUnsupportedTool.
func (s *Supervisor) Start(ctx context.Context, tool string, opts toolkit.Options, sink Sink) (string, <-chan *Result, error) {
	if sink == nil {
		sink = Discard
	}

	inv, err := s.toolkit.Translate(tool, opts)
	if err != nil {
		sink.Emit("ERROR: " + err.Error() + "\n")
		return "", nil, err
	}

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sink.Emit("ERROR: " + err.Error() + "\n")
		return "", nil, fmt.Errorf("spawning %s: %w", tool, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		sink.Emit("ERROR: " + err.Error() + "\n")
		return "", nil, fmt.Errorf("spawning %s: %w", tool, err)
	}

	if err := cmd.Start(); err != nil {
		sink.Emit("ERROR: " + err.Error() + "\n")
		return "", nil, fmt.Errorf("spawning %s: %w", tool, err)
	}

	r := &run{
		id:        uuid.New().String(),
		tool:      tool,
		cmd:       cmd,
		tracking:  inv.TrackingPath,
		startedAt: time.Now(),
		sink:      sink,
		stdout:    limitBuffer{limit: s.maxOutput},
		stderr:    limitBuffer{limit: s.maxOutput},
	}

	// Register before the pumps start so no output event can observe an
	// unregistered run.
	s.mu.Lock()
	s.live[r.id] = r
	s.mu.Unlock()

	done := make(chan *Result, 1)
	go s.supervise(r, stdout, stderr, done)

	return r.id, done, nil
}

// Stop removes the run from the live table and sends SIGTERM to its
// process. It returns false for unknown or already-finished IDs. The
// signal is best-effort: Stop does not wait for the process to die, and
// the run's completion channel still fires once the OS reaps it.
func (s *Supervisor) Stop(runID string) bool {
	s.mu.Lock()
	r, ok := s.live[runID]
	if ok {
		delete(s.live, runID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	r.stopped.Store(true)
	_ = r.cmd.Process.Signal(syscall.SIGTERM)
	return true
}

// LiveRuns returns the IDs of every registered run.
func (s *Supervisor) LiveRuns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	return ids
}

// Running reports whether runID is in the live table.
func (s *Supervisor) Running(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[runID]
	return ok
}

// Peek returns a snapshot of a live run's accumulated output. ok is
// false once the run has finished or been stopped.
func (s *Supervisor) Peek(runID string) (stdout, stderr string, ok bool) {
	s.mu.Lock()
	r, ok := s.live[runID]
	s.mu.Unlock()
	if !ok {
		return "", "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stdout.String(), r.stderr.String(), true
}

// supervise pumps both streams, waits for exit, unregisters the run,
// resolves artifacts, and delivers the result. The completion messages
// strictly follow the last output chunk.
func (s *Supervisor) supervise(r *run, stdout, stderr io.Reader, done chan<- *Result) {
	var g errgroup.Group
	g.Go(func() error { return r.pump(stdout, false) })
	g.Go(func() error { return r.pump(stderr, true) })
	_ = g.Wait()

	_ = r.cmd.Wait()
	code := r.cmd.ProcessState.ExitCode()

	// Idempotent with Stop's removal; whichever runs first wins.
	s.mu.Lock()
	delete(s.live, r.id)
	s.mu.Unlock()

	r.emit(fmt.Sprintf("\nProcess exited with code %d\n", code))

	files, err := ResolveArtifacts(r.tracking)
	if err != nil {
		r.emit("WARNING: reading tracking file: " + err.Error() + "\n")
	}
	_ = os.Remove(r.tracking)
	if files == nil {
		files = []string{}
	}

	r.emit("--- run complete ---\n")

	r.mu.Lock()
	res := &Result{
		RunID:        r.id,
		Tool:         r.tool,
		ExitCode:     code,
		Stdout:       r.stdout.String(),
		Stderr:       r.stderr.String(),
		CreatedFiles: files,
		Truncated:    r.stdout.truncated || r.stderr.truncated,
		Stopped:      r.stopped.Load(),
		StartedAt:    r.startedAt,
		Duration:     time.Since(r.startedAt),
	}
	r.mu.Unlock()

	if s.history != nil {
		_ = s.history.Save(&history.Record{
			ID:           res.RunID,
			Tool:         res.Tool,
			ExitCode:     res.ExitCode,
			Stdout:       res.Stdout,
			Stderr:       res.Stderr,
			CreatedFiles: res.CreatedFiles,
			Truncated:    res.Truncated,
			Stopped:      res.Stopped,
			StartedAt:    res.StartedAt,
			Duration:     res.Duration,
		})
	}

	done <- res
}

// pump reads src chunk by chunk and delivers each chunk as it arrives.
func (r *run) pump(src io.Reader, isStderr bool) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			r.deliver(string(buf[:n]), isStderr)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// deliver appends a chunk to its accumulator and mirrors it to the sink,
// tagging stderr chunks so the sink can distinguish provenance.
func (r *run) deliver(text string, isStderr bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isStderr {
		r.stderr.append(text)
		r.sink.Emit("ERROR: " + text)
	} else {
		r.stdout.append(text)
		r.sink.Emit(text)
	}
}

// emit sends a synthetic message to the sink.
func (r *run) emit(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink.Emit(text)
}

// limitBuffer accumulates up to limit bytes, then silently discards the
// rest. A limit of zero means unbounded.
type limitBuffer struct {
	b         strings.Builder
	limit     int
	truncated bool
}

func (l *limitBuffer) append(s string) {
	if l.limit <= 0 {
		l.b.WriteString(s)
		return
	}
	remaining := l.limit - l.b.Len()
	if remaining <= 0 {
		l.truncated = true
		return
	}
	if len(s) > remaining {
		l.b.WriteString(s[:remaining])
		l.truncated = true
		return
	}
	l.b.WriteString(s)
}

func (l *limitBuffer) String() string { return l.b.String() }
