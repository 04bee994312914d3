// Package entities defines core domain models and data structures.
package entities

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact is the resolved, on-disk package under verification
type Artifact struct {
	Name         string // base name used for profile detection
	Root         string // directory holding the package contents
	Origin       string // archive path when the root was extracted, empty otherwise
	Tier         Tier
	Architecture Architecture
	TempDir      string // harness-owned extraction directory, removed by Close
}

// Path resolves a slash-separated path relative to the artifact root
func (a *Artifact) Path(rel string) string {
	return filepath.Join(a.Root, filepath.FromSlash(rel))
}

// Extracted reports whether the artifact was unpacked from an archive
func (a *Artifact) Extracted() bool {
	return a.Origin != ""
}

// Close removes the harness-owned extraction directory. It is safe to call more than once.
func (a *Artifact) Close() error {
	if a == nil || a.TempDir == "" {
		return nil
	}
	dir := a.TempDir
	a.TempDir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove extraction directory %s: %w", dir, err)
	}
	return nil
}
