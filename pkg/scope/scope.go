// Package scope resolves and polices the partition key that isolates
// memories: the project root of the working directory a turn was captured in.
package scope

import (
	"os"
	"path/filepath"
)

// DefaultMarkers are the files/directories whose presence marks a project
// root.
var DefaultMarkers = []string{".git"}

// DetectRoot walks upward from cwd looking for any marker. It returns the
// first directory containing one, or cwd itself (absolute, cleaned) when no
// marker is found anywhere above it.
func DetectRoot(cwd string, markers []string) string {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}

	abs, err := filepath.Abs(cwd)
	if err != nil {
		return cwd
	}

	dir := abs
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		dir = parent
	}
}
