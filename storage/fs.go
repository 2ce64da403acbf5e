package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore stores blobs on the local filesystem under a base directory,
// matching the layout the web server exposes at /uploads/.
type FSStore struct {
	baseDir string
}

// NewFSStore creates an FSStore rooted at baseDir, creating the directory
// tree if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "covers"), filepath.Join(baseDir, "lyrics")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &FSStore{baseDir: baseDir}, nil
}

// resolve maps a blob name onto the base directory, refusing path escapes.
func (s *FSStore) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *FSStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	// Write to a temp file first so a client disconnect mid-upload never
	// leaves a half-written blob under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to finalize blob %s: %w", name, err)
	}
	return nil
}

func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", name, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", name, err)
	}
	return f, nil
}

func (s *FSStore) Remove(ctx context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, ErrBlobNotFound)
		}
		return fmt.Errorf("failed to remove blob %s: %w", name, err)
	}
	return nil
}

// ListAudio lists regular files at the store root, skipping the metadata
// file and in-flight temp files.
func (s *FSStore) ListAudio(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == "metadata.json" || strings.HasSuffix(name, ".tmp") || strings.HasPrefix(name, ".upload-") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
