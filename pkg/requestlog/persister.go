package requestlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Persister.Load when nothing has been saved yet.
var ErrNotFound = errors.New("requestlog: no persisted snapshot")

// Persister stores one encoded snapshot of the whole collection.
// Save replaces the previous snapshot atomically.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Backend identifies a persistence backend.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// FilePersister keeps the snapshot in a single file.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to path. The parent
// directory is created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the snapshot file location.
func (p *FilePersister) Path() string { return p.path }

// Load reads the snapshot file.
func (p *FilePersister) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", p.path, err)
	}
	return data, nil
}

// Save writes data to a temp file in the same directory and renames it
// over the snapshot, so an interrupted write leaves the old file intact.
func (p *FilePersister) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		cleanup()
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// MemoryPersister keeps the snapshot in memory. Useful for tests and for
// recorders that must not touch the disk.
type MemoryPersister struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load returns a copy of the last saved snapshot.
func (p *MemoryPersister) Load(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), p.data...), nil
}

// Save replaces the snapshot.
func (p *MemoryPersister) Save(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(make([]byte, 0, len(data)), data...)
	p.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// ParseBackend validates a backend name. Empty means BackendFile.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case "":
		return BackendFile, nil
	case BackendFile, BackendSQLite, BackendMemory:
		return b, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q", s)
	}
}

// OpenPersister creates the persister for backend, storing at path.
// path is ignored by the memory backend.
func OpenPersister(backend Backend, path string) (Persister, error) {
	switch backend {
	case BackendFile, "":
		return NewFilePersister(path), nil
	case BackendSQLite:
		return OpenSQLitePersister(path)
	case BackendMemory:
		return NewMemoryPersister(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
