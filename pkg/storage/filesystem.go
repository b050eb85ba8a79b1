package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemStore implements FileStore on the local filesystem
type FilesystemStore struct {
	rootDir string
}

// NewFilesystemStore creates a filesystem-backed store rooted at rootDir
func NewFilesystemStore(rootDir string) (*FilesystemStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FilesystemStore{rootDir: rootDir}, nil
}

func (s *FilesystemStore) path(ref string) (string, error) {
	if !validRef(ref) {
		return "", ErrNotFound
	}
	return filepath.Join(s.rootDir, ref), nil
}

// Save implements FileStore.Save. The file is written to a temporary name
// and renamed into place so a failed copy never leaves a partial file.
func (s *FilesystemStore) Save(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	ref := NewRef(suggestedName)
	final := filepath.Join(s.rootDir, ref)

	tmp, err := os.CreateTemp(s.rootDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return ref, nil
}

// Open implements FileStore.Open
func (s *FilesystemStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return f, nil
}

// Delete implements FileStore.Delete. Deleting a missing file is not an error.
func (s *FilesystemStore) Delete(ctx context.Context, ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return nil
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Stat implements FileStore.Stat
func (s *FilesystemStore) Stat(ctx context.Context, ref string) (int64, error) {
	p, err := s.path(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

// HealthCheck reports whether the root directory is still a directory.
func (s *FilesystemStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("storage directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.rootDir)
	}
	return nil
}
