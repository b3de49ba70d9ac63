package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// discoveryPattern matches the supported extensions case-insensitively at any depth.
const discoveryPattern = "**/*.{[pP][dD][fF],[tT][xX][tT],[mM][dD],[hH][tT][mM],[hH][tT][mM][lL]}"

// ScannedFile represents a document file found under the corpus root.
type ScannedFile struct {
	RelPath string // Relative path from corpus root, slash-separated (e.g., "hr/leave.pdf")
	AbsPath string // Absolute file path
	Ext     string // Lowercase extension without the dot (e.g., "pdf")
}

// Scan recursively discovers supported documents under root. The result is
// deduplicated and sorted by relative path so ingestion order is reproducible.
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to access corpus root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", absRoot)
	}

	seen := make(map[string]struct{})
	var scannedFiles []ScannedFile

	err = doublestar.GlobWalk(os.DirFS(absRoot), discoveryPattern, func(relPath string, d fs.DirEntry) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, ok := seen[relPath]; ok {
			return nil
		}
		seen[relPath] = struct{}{}

		scannedFiles = append(scannedFiles, ScannedFile{
			RelPath: relPath,
			AbsPath: filepath.Join(absRoot, filepath.FromSlash(relPath)),
			Ext:     strings.TrimPrefix(strings.ToLower(path.Ext(relPath)), "."),
		})
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus %s: %w", absRoot, err)
	}

	sort.Slice(scannedFiles, func(i, j int) bool {
		return scannedFiles[i].RelPath < scannedFiles[j].RelPath
	})

	return scannedFiles, nil
}
