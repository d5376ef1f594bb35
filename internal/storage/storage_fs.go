// Package storage writes rendered reports to a directory on disk.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LatestName is the symlink kept pointing at the most recent report.
const LatestName = "latest.html"

type FSStorage struct {
	Root string
}

func NewFSStorage(root string) *FSStorage {
	return &FSStorage{Root: root}
}

// WriteReport stores content under name below Root and returns the absolute
// path written.
func (s *FSStorage) WriteReport(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := s.writeFileAbsolute(fullPath, content); err != nil {
		return "", err
	}
	return fullPath, nil
}

// LinkLatest points LatestName at the report stored under name.
func (s *FSStorage) LinkLatest(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeSymlink(LatestName, name)
}

func (s *FSStorage) resolve(name string) (string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("resolve report dir: %w", err)
	}
	fullPath := filepath.Join(root, filepath.FromSlash(name))
	if rel, err := filepath.Rel(root, fullPath); err != nil || rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("report name %q escapes %s", name, root)
	}
	return fullPath, nil
}

func (s *FSStorage) writeFileAbsolute(fullPath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// Remove any existing file or symlink so os.WriteFile does not
	// follow a stale symlink, such as an old latest.html.
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *FSStorage) writeSymlink(destPath string, target string) error {
	fullPath, err := s.resolve(destPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing: %w", err)
	}
	if err := os.Symlink(target, fullPath); err != nil {
		return fmt.Errorf("symlink: %w", err)
	}
	return nil
}
