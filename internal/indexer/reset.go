package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when a reset targets a path too broad to delete.
var ErrUnsafePath = errors.New("refusing to remove unsafe path")

// SafeRemoveAll deletes path and recreates it empty. It refuses empty paths,
// the filesystem root and any absolute path shorter than 10 characters.
func SafeRemoveAll(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if abs == string(filepath.Separator) || len(abs) < 10 {
		return fmt.Errorf("%w: %s", ErrUnsafePath, abs)
	}

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to remove %s: %w", abs, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("failed to recreate %s: %w", abs, err)
	}
	return nil
}
