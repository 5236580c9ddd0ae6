package osfilesystem

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystem_CreateAndOpen(t *testing.T) {
	fs := New()

	testPath := filepath.Join(t.TempDir(), "stream.h264")

	w, err := fs.Create(testPath)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := fs.Open(testPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", data)
	}

	data, err = fs.ReadFile(testPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("ReadFile: expected %q, got %q", "hello world", data)
	}
}

func TestFileSystem_CreateMakesParentDirs(t *testing.T) {
	fs := New()

	testPath := filepath.Join(t.TempDir(), "a", "b", "c", "out.h264")
	w, err := fs.Create(testPath)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Close()

	exists, err := fs.Exists(testPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected file to exist")
	}
}

func TestFileSystem_ReadDir(t *testing.T) {
	fs := New()
	dir := t.TempDir()

	for _, name := range []string{"b.png", "a.jpg", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	names, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []string{"a.jpg", "b.png", "c.txt"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestFileSystem_ExistsNonExistent(t *testing.T) {
	fs := New()

	exists, err := fs.Exists("/nonexistent/path/to/file.txt")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected file to not exist")
	}
}

func TestFileSystem_OpenNonExistent(t *testing.T) {
	fs := New()

	if _, err := fs.Open("/nonexistent/path/to/file.txt"); err == nil {
		t.Error("expected error for non-existent file")
	}
}
