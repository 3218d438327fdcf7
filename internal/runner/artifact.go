package runner

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveArtifacts reads the tracking file a tool was told to write
// created-file paths into and returns the paths that actually exist on
// disk, in the order written. A missing tracking file is the normal case
// (most tools never write one) and yields nil with no error. A read
// failure is returned for the caller to report as a warning; it never
// fails the run.
func ResolveArtifacts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs, err := filepath.Abs(line)
		if err != nil {
			continue
		}
		// Tools sometimes list paths they intended to write but never
		// did; those are silently excluded.
		if _, err := os.Stat(abs); err == nil {
			files = append(files, abs)
		}
	}
	return files, nil
}
