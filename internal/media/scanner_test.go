package media

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestScan(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"a.JPG", "b.png", "c.txt", "d", "e.Jpeg", "f.gif", ".jpg", "g.webp"} {
		writeFile(t, filepath.Join(dir, name), []byte("x"))
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	// Nested files are never listed.
	writeFile(t, filepath.Join(dir, "sub.jpg", "nested.jpg"), []byte("x"))

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	sort.Strings(files)
	want := []string{"a.JPG", "b.png", "e.Jpeg", "f.gif"}
	if len(files) != len(want) {
		t.Fatalf("Scan() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("Scan()[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestScanEmptyDirectory(t *testing.T) {
	files, err := Scan(t.TempDir())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Scan() = %v, want empty", files)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	files, err := Scan(dir)
	if files != nil {
		t.Errorf("Scan() = %v, want nil", files)
	}

	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan() error = %v, want *ScanError", err)
	}
	if scanErr.Dir != dir {
		t.Errorf("ScanError.Dir = %q, want %q", scanErr.Dir, dir)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Scan() error should unwrap to os.ErrNotExist, got %v", err)
	}
}

func TestScanFileInsteadOfDirectory(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "file.jpg"), []byte("x"))

	var scanErr *ScanError
	if _, err := Scan(path); !errors.As(err, &scanErr) {
		t.Errorf("Scan(file) error = %v, want *ScanError", err)
	}
}
