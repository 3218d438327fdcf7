// Package toolkit resolves named tool scripts and translates option bags
// into concrete command lines. Arguments are always passed as a vector,
// never as a shell string.
package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Well-known option names and flags.
const (
	// InputKey marks the tool's primary input file; its value is passed
	// as a bare positional argument.
	InputKey = "input_file"
	// OutputKey marks the tool's primary output file; its value is
	// passed in --output_file <value> form.
	OutputKey = "output_file"
	// TrackingFlag is injected into every invocation with a fresh temp
	// path so the tool can self-report files it writes.
	TrackingFlag = "--file_tracking_path"
)

// ErrToolNotFound is returned when a tool name resolves to a script path
// that does not exist on disk.
type ErrToolNotFound struct {
	Name string
	Path string
}

func (e ErrToolNotFound) Error() string {
	return fmt.Sprintf("tool %q not found at %s", e.Name, e.Path)
}

// ErrUnsupportedTool is returned when a tool name does not carry a
// runnable script extension.
type ErrUnsupportedTool struct {
	Name string
}

func (e ErrUnsupportedTool) Error() string {
	return fmt.Sprintf("tool %q has an unsupported type; supported extensions have a configured interpreter", e.Name)
}

// Invocation is a fully-resolved command line for one tool run.
type Invocation struct {
	Path         string   // interpreter binary
	Args         []string // arguments after the binary name, script path included
	TrackingPath string   // temp file the tool may write created-file paths into
}

// Toolkit resolves tool names against a tools directory and builds
// argument vectors, consulting a per-tool builder registry.
type Toolkit struct {
	dir          string
	interpreters map[string]string // extension → interpreter binary
	builders     map[string]Builder
}

// New creates a Toolkit for the given tools directory and interpreter
// table. A nil table uses .py → python3 and .sh → sh. Builders for tools
// with bespoke argument shapes are pre-registered.
func New(dir string, interpreters map[string]string) *Toolkit {
	if interpreters == nil {
		interpreters = map[string]string{".py": "python3", ".sh": "sh"}
	}
	t := &Toolkit{
		dir:          dir,
		interpreters: interpreters,
		builders:     make(map[string]Builder),
	}
	t.Register("count_tokens.py", countTokensBuilder)
	return t
}

// Dir returns the tools directory.
func (t *Toolkit) Dir() string { return t.dir }

// Register installs a bespoke argument builder for the named tool,
// replacing any existing registration.
func (t *Toolkit) Register(name string, b Builder) {
	t.builders[name] = b
}

// Resolve maps a tool name to its script path and interpreter.
// The extension is checked before the filesystem so that unsupported
// types fail fast even when no script exists.
func (t *Toolkit) Resolve(name string) (script, interpreter string, err error) {
	ext := filepath.Ext(name)
	bin, ok := t.interpreters[ext]
	if !ok {
		return "", "", ErrUnsupportedTool{Name: name}
	}

	script = filepath.Join(t.dir, name)
	if _, err := os.Stat(script); err != nil {
		return "", "", ErrToolNotFound{Name: name, Path: script}
	}
	return script, bin, nil
}

// List returns the names of runnable scripts in the tools directory,
// sorted. Entries without a configured interpreter are skipped.
func (t *Toolkit) List() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading tools directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := t.interpreters[filepath.Ext(e.Name())]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Translate resolves name and builds the full invocation for the given
// option bag. The tracking-flag pair is always appended last, after the
// builder's arguments, with a freshly generated temp path unique to this
// invocation.
func (t *Toolkit) Translate(name string, opts Options) (*Invocation, error) {
	script, interpreter, err := t.Resolve(name)
	if err != nil {
		return nil, err
	}

	builder := t.builders[name]
	if builder == nil {
		builder = defaultBuilder
	}
	pre, args := builder(opts)

	tracking := filepath.Join(os.TempDir(), "scribe-files-"+uuid.NewString()+".txt")

	argv := make([]string, 0, len(pre)+1+len(args)+2)
	argv = append(argv, pre...)
	argv = append(argv, script)
	argv = append(argv, args...)
	argv = append(argv, TrackingFlag, tracking)

	return &Invocation{
		Path:         interpreter,
		Args:         argv,
		TrackingPath: tracking,
	}, nil
}
