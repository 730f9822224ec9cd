// Package datasource locates the tusk SQLite database and reads a
// task/dependency/blocker snapshot from it.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDBRelPath is where tusk keeps its database relative to a repo root.
var DefaultDBRelPath = filepath.Join("tusk", "tasks.db")

// ErrNoDatabase is returned when no tusk database can be found.
var ErrNoDatabase = errors.New("no tusk database found")

// DiscoveryOptions controls where DiscoverDB looks.
type DiscoveryOptions struct {
	// Path is used as-is when set.
	Path string
	// StartDir is where the upward search begins (cwd when empty).
	StartDir string
	// Logger receives progress messages when set.
	Logger func(msg string)
}

// DiscoverDB resolves the database path. Precedence: opts.Path, the
// TUSK_DB environment variable, then the nearest tusk/tasks.db found by
// walking up from StartDir.
func DiscoverDB(opts DiscoveryOptions) (string, error) {
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	if opts.Path != "" {
		return checkFile(opts.Path)
	}
	if env := os.Getenv("TUSK_DB"); env != "" {
		logf("Using TUSK_DB=%s", env)
		return checkFile(env)
	}

	dir := opts.StartDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve start dir: %w", err)
	}

	for {
		candidate := filepath.Join(dir, DefaultDBRelPath)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			logf("Found database: %s", candidate)
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoDatabase
		}
		dir = parent
	}
}

func checkFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNoDatabase, path)
		}
		return "", fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNoDatabase, path)
	}
	return path, nil
}
