/*
Package filestore stores certificate binaries on local disk.

PURPOSE:
  Implements leave.FileStore against a single root directory. Each file
  is written under a caller-supplied unique key; the returned storage
  path is the absolute path on disk. In production the same interface
  maps onto object storage (S3, GCS) without touching the engine.

DURABILITY:
  SaveFile returns only after the bytes are flushed to disk. DeleteFile
  is idempotent: removing a file that is already gone succeeds, so the
  admission controller's rollback path can retry safely.

SEE ALSO:
  - leave/store.go: FileStore contract
  - leave/admission.go: Consumer (certificate persistence and rollback)
*/
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warp/leave-engine/leave"
)

// Local is a leave.FileStore backed by a directory on disk.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns the store.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}
	return &Local{root: root}, nil
}

var _ leave.FileStore = (*Local)(nil)

// SaveFile writes the data under the given key and returns its location.
func (l *Local) SaveFile(_ context.Context, data []byte, key string) (leave.StoredFile, error) {
	// Keys are engine-generated IDs, but strip any path components in
	// case a caller passes an original filename.
	name := filepath.Base(key)
	path := filepath.Join(l.root, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return leave.StoredFile{}, fmt.Errorf("failed to write file: %w", err)
	}
	return leave.StoredFile{StoragePath: path, StoredName: name}, nil
}

// DeleteFile removes the file. A missing file is success.
func (l *Local) DeleteFile(_ context.Context, storagePath string) error {
	if err := os.Remove(storagePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
