package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte(`{"root":{"children":[]}}`)
	if err := s.Write("doc.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("doc.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.json", []byte("{}"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := s.Read("del.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("read after delete: err = %v, want ErrNotExist", err)
	}
	if err := s.Delete("del.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second delete: err = %v, want ErrNotExist", err)
	}
}

func TestExists(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("here.json", []byte("{}"))
	if ok, err := s.Exists("here.json"); err != nil || !ok {
		t.Errorf("Exists(here) = %v, %v", ok, err)
	}
	if ok, err := s.Exists("gone.json"); err != nil || ok {
		t.Errorf("Exists(gone) = %v, %v", ok, err)
	}
}

func TestListIsFlatAndSorted(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("b.json", []byte("{}"))
	_ = s.Write("a.json", []byte(`{"x":1}`))
	_ = os.WriteFile(filepath.Join(s.root, "readme.txt"), []byte("not a document"), 0o644)
	_ = os.WriteFile(filepath.Join(s.root, tempPrefix+"123.json"), []byte("{}"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.root, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(s.root, "sub", "nested.json"), []byte("{}"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Path != "a.json" || items[1].Path != "b.json" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Checksum == items[1].Checksum || items[0].Checksum == "" {
		t.Errorf("checksums = %q, %q", items[0].Checksum, items[1].Checksum)
	}
}

func TestInvalidNamesRejected(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow.json",
		"sub/doc.json",
		`sub\doc.json`,
		".hidden.json",
		"notes.txt",
		"",
	} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected read error for %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected write error for %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic.json", []byte(`{"v":1}`))
	if err := s.Write("atomic.json", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != `{"v":2}` {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestSweepTemp(t *testing.T) {
	s := tempVault(t)
	stale := filepath.Join(s.root, tempPrefix+"old")
	fresh := filepath.Join(s.root, tempPrefix+"new")
	_ = os.WriteFile(stale, []byte("{}"), 0o644)
	_ = os.WriteFile(fresh, []byte("{}"), 0o644)
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	n, err := s.SweepTemp(10 * time.Minute)
	if err != nil {
		t.Fatalf("SweepTemp: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, err := os.Stat(stale); !errors.Is(err, fs.ErrNotExist) {
		t.Error("stale temp file survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file was removed")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(p, nil, 0o644)
	if _, err := NewFS(p); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestIsDocument(t *testing.T) {
	cases := map[string]bool{
		"a.json":              true,
		"/vault/b.json":       true,
		"c.md":                false,
		tempPrefix + "1.json": false,
		"/vault/.hidden.json": false,
		"document.json.bak":   false,
	}
	for name, want := range cases {
		if got := IsDocument(name); got != want {
			t.Errorf("IsDocument(%q) = %v, want %v", name, got, want)
		}
	}
}
