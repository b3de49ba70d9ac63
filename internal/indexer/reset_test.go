package indexer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeRemoveAll_RefusesUnsafePaths(t *testing.T) {
	for _, path := range []string{"", "   ", "/", "/tmp", "/var/x"} {
		t.Run(path, func(t *testing.T) {
			if err := SafeRemoveAll(path); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("SafeRemoveAll(%q) error = %v, want ErrUnsafePath", path, err)
			}
		})
	}
}

func TestSafeRemoveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "store.db"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := SafeRemoveAll(dir); err != nil {
		t.Fatalf("SafeRemoveAll() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("directory should be recreated: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory has %d entries after reset, want 0", len(entries))
	}
}
