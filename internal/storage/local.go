package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned when a file name contains a path separator or
// refers to a parent directory.
var ErrInvalidName = errors.New("invalid file name")

// Compile-time checks for LocalStorage.
var (
	_ FileStore         = (*LocalStorage)(nil)
	_ WorkspaceProvider = (*LocalStorage)(nil)
)

// LocalStorage implements FileStore and WorkspaceProvider on local disk.
// All files live directly under a single root directory.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage rooted at dir.
// If dir is empty, a "tubely" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tubely")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the root directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Save writes data to name inside the root directory.
// Data is written to a temporary sibling first and renamed into place, so a
// reader never observes a partially written file.
func (s *LocalStorage) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := validateName(name); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close file: %w", err)
	}

	dst := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename file: %w", err)
	}

	return dst, nil
}

// Open opens a file for reading.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return f, nil
}

// NewWorkspace creates a uniquely named subdirectory of the root.
func (s *LocalStorage) NewWorkspace(ctx context.Context, prefix string) (*Workspace, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if prefix == "" {
		prefix = "work"
	}

	dir, err := os.MkdirTemp(s.dir, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{LocalStorage: &LocalStorage{dir: dir}}, nil
}

// Workspace is a private directory for one unit of work.
// Files saved into it are removed by Close.
type Workspace struct {
	*LocalStorage
}

// Close removes the workspace directory and everything in it.
// It is safe to call more than once.
func (w *Workspace) Close() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.dir, err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
