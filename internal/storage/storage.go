// Package storage provides local working storage and remote object storage.
// It defines the ports used by the ingest pipeline and implementations for
// local disk and S3.
package storage

import (
	"context"
	"io"
	"time"
)

// FileStore saves named files into a directory.
type FileStore interface {
	// Save writes data to a file called name and returns its path.
	// The file is complete and closed when Save returns.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)
}

// WorkspaceProvider hands out private working directories.
type WorkspaceProvider interface {
	// NewWorkspace creates a fresh directory owned by the caller.
	// The caller must Close the workspace to release it.
	NewWorkspace(ctx context.Context, prefix string) (*Workspace, error)
}

// ObjectStore persists bytes remotely and mints time-limited read URLs.
type ObjectStore interface {
	// PutObject stores data under key, replacing any existing object.
	// Failures wrap ErrStorageWrite.
	PutObject(ctx context.Context, key string, data io.Reader, contentType string) error

	// PresignGet returns a URL granting read access to key for expiry.
	// It does not check that the object exists. Failures wrap ErrSigning.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (url string, err error)
}
