// Package workdir resolves the lift data root directory, so commands run
// from nested directories find the store initialized at the project root.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDir  = ".lift"
	rootFile = ".lift-root"
)

// ResolveBaseDir walks up from startDir looking for an existing .lift
// directory, returning the directory that contains it. A .lift-root file
// redirects to the path it contains, letting several checkouts share one
// store. When nothing is found, startDir is returned unchanged so that
// `lift init` creates the store where it is run.
func ResolveBaseDir(startDir string) string {
	dir := startDir
	for {
		if redirected, ok := readRootFile(dir); ok {
			return redirected
		}
		if info, err := os.Stat(filepath.Join(dir, dataDir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// readRootFile reads a .lift-root redirect in dir, resolving relative paths
// against dir.
func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, rootFile))
	if err != nil {
		return "", false
	}
	resolved := strings.TrimSpace(string(content))
	if resolved == "" {
		return "", false
	}
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(dir, resolved)
	}
	return resolved, true
}
