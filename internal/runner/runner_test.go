package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deixis/scribe/internal/history"
	"github.com/deixis/scribe/internal/toolkit"
)

// newTestSupervisor creates a supervisor over a temp tools directory
// containing the named scripts (name → shell source).
func newTestSupervisor(t *testing.T, scripts map[string]string) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	for name, src := range scripts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return NewSupervisor(toolkit.New(dir, nil), 0, nil)
}

// recordingSink collects every emitted chunk.
type recordingSink struct {
	mu     sync.Mutex
	chunks []string
}

func (s *recordingSink) Emit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, text)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks...)
}

func waitResult(t *testing.T, done <-chan *Result) *Result {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("run did not complete")
		return nil
	}
}

func TestStart_ImmediateExitNoOutput(t *testing.T) {
	s := newTestSupervisor(t, map[string]string{"noop.sh": "exit 0\n"})

	id, done, err := s.Start(context.Background(), "noop.sh", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id == "" {
		t.Error("empty run ID")
	}

	res := waitResult(t, done)
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "" || res.Stderr != "" {
		t.Errorf("Stdout = %q, Stderr = %q, want both empty", res.Stdout, res.Stderr)
	}
	if len(res.CreatedFiles) != 0 {
		t.Errorf("CreatedFiles = %v, want empty", res.CreatedFiles)
	}
	if s.Running(id) {
		t.Error("run still registered after completion")
	}
}

func TestStart_StreamsInOrder(t *testing.T) {
	s := newTestSupervisor(t, map[string]string{
		"chatty.sh": "printf one; printf two; printf three\n",
	})

	sink := &recordingSink{}
	_, done, err := s.Start(context.Background(), "chatty.sh", nil, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, done)

	if res.Stdout != "onetwothree" {
		t.Errorf("Stdout = %q, want onetwothree", res.Stdout)
	}

	// Concatenating the stdout chunks delivered before the exit message
	// must reproduce the accumulator exactly.
	var b strings.Builder
	for _, c := range sink.all() {
		if strings.HasPrefix(c, "\nProcess exited") {
			break
		}
		b.WriteString(c)
	}
	if b.String() != res.Stdout {
		t.Errorf("sink chunks = %q, accumulator = %q", b.String(), res.Stdout)
	}
}

func TestStart_StderrTaggedAndCompletionMessages(t *testing.T) {
	s := newTestSupervisor(t, map[string]string{
		"grumble.sh": "echo oops >&2; exit 3\n",
	})

	sink := &recordingSink{}
	_, done, err := s.Start(context.Background(), "grumble.sh", nil, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, done)

	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Errorf("Stderr = %q, want to contain oops", res.Stderr)
	}

	chunks := sink.all()
	var tagged, exitMsg, completeMsg bool
	for _, c := range chunks {
		if strings.HasPrefix(c, "ERROR: ") && strings.Contains(c, "oops") {
			tagged = true
		}
		if strings.Contains(c, "Process exited with code 3") {
			exitMsg = true
		}
		if strings.Contains(c, "--- run complete ---") {
			completeMsg = true
		}
	}
	if !tagged {
		t.Errorf("no ERROR-tagged stderr chunk in %q", chunks)
	}
	if !exitMsg || !completeMsg {
		t.Errorf("missing completion messages in %q", chunks)
	}

	// The exit message strictly follows the last output chunk, and the
	// completion marker is last.
	last := chunks[len(chunks)-1]
	if !strings.Contains(last, "--- run complete ---") {
		t.Errorf("last chunk = %q, want completion marker", last)
	}
}

func TestStart_Artifacts(t *testing.T) {
	work := t.TempDir()
	fileA := filepath.Join(work, "a.txt")
	fileB := filepath.Join(work, "b.txt")
	for _, f := range []string{fileA, fileB} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	missing := filepath.Join(work, "never-written.txt")

	// argv: --a <fileA> --missing <missing> --b <fileB> --file_tracking_path <path>
	s := newTestSupervisor(t, map[string]string{
		"report.sh": "printf '%s\\n%s\\n%s\\n' \"$2\" \"$4\" \"$6\" > \"$8\"\n",
	})

	opts := toolkit.Options{
		{Name: "a", Value: fileA},
		{Name: "missing", Value: missing},
		{Name: "b", Value: fileB},
	}
	_, done, err := s.Start(context.Background(), "report.sh", opts, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, done)

	want := []string{fileA, fileB}
	if len(res.CreatedFiles) != 2 || res.CreatedFiles[0] != want[0] || res.CreatedFiles[1] != want[1] {
		t.Errorf("CreatedFiles = %v, want %v", res.CreatedFiles, want)
	}
}

func TestStop(t *testing.T) {
	s := newTestSupervisor(t, map[string]string{"slow.sh": "exec sleep 10\n"})

	id, done, err := s.Start(context.Background(), "slow.sh", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Running(id) {
		t.Fatal("run not registered")
	}

	if !s.Stop(id) {
		t.Fatal("Stop = false, want true")
	}
	if s.Running(id) {
		t.Error("run still registered immediately after Stop")
	}
	if s.Stop(id) {
		t.Error("second Stop = true, want false")
	}

	// Completion still fires once the OS reaps the process, without
	// panicking over the already-unregistered run.
	res := waitResult(t, done)
	if !res.Stopped {
		t.Error("Stopped = false, want true")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 (signal)", res.ExitCode)
	}
}

func TestStop_UnknownID(t *testing.T) {
	s := newTestSupervisor(t, nil)
	if s.Stop("no-such-run") {
		t.Error("Stop = true for unknown ID")
	}
}

func TestStart_ConcurrentRunsGetDistinctIDs(t *testing.T) {
	s := newTestSupervisor(t, map[string]string{"noop.sh": "exit 0\n"})

	id1, done1, err := s.Start(context.Background(), "noop.sh", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, done2, err := s.Start(context.Background(), "noop.sh", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if id1 == id2 {
		t.Errorf("run IDs collide: %q", id1)
	}
	waitResult(t, done1)
	waitResult(t, done2)
}

func TestStart_ToolNotFound(t *testing.T) {
	s := newTestSupervisor(t, nil)

	sink := &recordingSink{}
	_, _, err := s.Start(context.Background(), "ghost.sh", nil, sink)
	var notFound toolkit.ErrToolNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}

	chunks := sink.all()
	if len(chunks) == 0 || !strings.HasPrefix(chunks[0], "ERROR: ") {
		t.Errorf("sink = %q, want an ERROR message", chunks)
	}
	if live := s.LiveRuns(); len(live) != 0 {
		t.Errorf("live runs = %v, want none", live)
	}
}

func TestStart_UnsupportedTool(t *testing.T) {
	s := newTestSupervisor(t, nil)
	_, _, err := s.Start(context.Background(), "tool.exe", nil, nil)
	var unsupported toolkit.ErrUnsupportedTool
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want ErrUnsupportedTool", err)
	}
}

func TestPeek(t *testing.T) {
	s := newTestSupervisor(t, map[string]string{"pause.sh": "echo hello; exec sleep 10\n"})

	id, done, err := s.Start(context.Background(), "pause.sh", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		stdout, _, ok := s.Peek(id)
		if ok && strings.Contains(stdout, "hello") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Peek never observed output")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop(id)
	waitResult(t, done)

	if _, _, ok := s.Peek(id); ok {
		t.Error("Peek ok for finished run")
	}
}

func TestStart_SavesHistory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "noop.sh"), []byte("echo done\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	store := history.NewDiskStore()
	s := NewSupervisor(toolkit.New(dir, nil), 0, store)

	id, done, err := s.Start(context.Background(), "noop.sh", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, done)

	rec, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Tool != "noop.sh" || rec.ExitCode != res.ExitCode {
		t.Errorf("record = %+v, want tool noop.sh exit %d", rec, res.ExitCode)
	}
}

func TestStart_OutputTruncation(t *testing.T) {
	dir := t.TempDir()
	script := "i=0; while [ $i -lt 100 ]; do printf 0123456789; i=$((i+1)); done\n"
	if err := os.WriteFile(filepath.Join(dir, "loud.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewSupervisor(toolkit.New(dir, nil), 100, nil)

	_, done, err := s.Start(context.Background(), "loud.sh", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitResult(t, done)

	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) > 100 {
		t.Errorf("len(Stdout) = %d, want <= 100", len(res.Stdout))
	}
}
