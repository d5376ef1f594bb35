package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	s := NewFSStorage(filepath.Join(dir, "reports"))

	path, err := s.WriteReport(context.Background(), "mov-1.html", []byte("<html>"))
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if path != filepath.Join(dir, "reports", "mov-1.html") {
		t.Fatalf("unexpected path %s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<html>" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteReport_OverwritesDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "report.html")
	if err := os.Symlink(filepath.Join(dir, "nonexistent"), dest); err != nil {
		t.Fatal(err)
	}

	s := NewFSStorage(dir)
	if _, err := s.WriteReport(context.Background(), "report.html", []byte("hello")); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	info, err := os.Lstat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Fatal("expected regular file, got symlink")
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestWriteReport_OverwritesCircularSymlink(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "b.html")
	if err := os.Symlink(b, a); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(a, b); err != nil {
		t.Fatal(err)
	}

	s := &FSStorage{}
	if err := s.writeFileAbsolute(a, []byte("content")); err != nil {
		t.Fatalf("writeFileAbsolute failed: %v", err)
	}
	got, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Fatalf("got %q, want %q", got, "content")
	}
}

func TestWriteReport_RejectsEscapingNames(t *testing.T) {
	s := NewFSStorage(t.TempDir())
	for _, name := range []string{"../x.html", "", "."} {
		if _, err := s.WriteReport(context.Background(), name, []byte("x")); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestLinkLatest(t *testing.T) {
	dir := t.TempDir()
	s := NewFSStorage(dir)
	ctx := context.Background()

	for _, name := range []string{"first.html", "second.html"} {
		if _, err := s.WriteReport(ctx, name, []byte(name)); err != nil {
			t.Fatal(err)
		}
		if err := s.LinkLatest(ctx, name); err != nil {
			t.Fatalf("LinkLatest: %v", err)
		}
	}

	got, err := os.ReadFile(filepath.Join(dir, LatestName))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second.html" {
		t.Fatalf("latest points at %q", got)
	}
}

func TestWriteReport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFSStorage(t.TempDir()).WriteReport(ctx, "r.html", nil); err == nil {
		t.Fatal("expected context error")
	}
}
