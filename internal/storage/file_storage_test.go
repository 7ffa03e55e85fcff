package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func makeTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "filestorage_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func TestFileStorage_EnsureDirCreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(makeTempDir(t), "a", "b", "downloads")
	fs := NewFileStorage(dir)

	if err := fs.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("expected %s to be a directory", dir)
	}
}

func TestFileStorage_CreateAndExists(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	f, err := fs.CreateFile("test.dmg")
	if err != nil {
		t.Fatalf("CreateFile error: %v", err)
	}
	if _, err := f.WriteString("hello world"); err != nil {
		t.Fatalf("write error: %v", err)
	}
	f.Close()

	if !fs.FileExists("test.dmg") {
		t.Errorf("expected file to exist after creation")
	}

	data, err := os.ReadFile(fs.Path("test.dmg"))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFileStorage_PathStaysInsideDirectory(t *testing.T) {
	fs := NewFileStorage("/data/downloads")

	tests := map[string]string{
		"app.dmg":               "/data/downloads/app.dmg",
		"../../etc/passwd":      "/data/downloads/passwd",
		"nested/dir/app.tar.gz": "/data/downloads/app.tar.gz",
	}
	for name, want := range tests {
		if got := fs.Path(name); got != filepath.FromSlash(want) {
			t.Errorf("Path(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestFileStorage_RemoveIsIdempotent(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	if err := os.WriteFile(filepath.Join(dir, "a.zip"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	if err := fs.Remove("a.zip"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if fs.FileExists("a.zip") {
		t.Errorf("expected file to be removed")
	}
	if err := fs.Remove("a.zip"); err != nil {
		t.Errorf("expected second Remove to succeed, got %v", err)
	}
}

func TestFileStorage_RejectsNamesResolvingToDirectory(t *testing.T) {
	dir := makeTempDir(t)
	fs := NewFileStorage(dir)

	for _, name := range []string{"", ".", "..", "a/.."} {
		if fs.ValidName(name) {
			t.Errorf("expected %q to be invalid", name)
		}
		if err := fs.Remove(name); err == nil {
			t.Errorf("expected Remove(%q) to fail", name)
		}
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("storage directory must survive: %v", err)
	}
	if !fs.ValidName("app.zip") {
		t.Errorf("expected app.zip to be valid")
	}
}
