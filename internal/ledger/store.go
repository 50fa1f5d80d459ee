// internal/ledger/store.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Store хранит документ леджера целиком. Load возвращает (nil, nil), если
// документа ещё нет.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Quarantiner is implemented by stores that can move an unreadable
// document aside so it is not overwritten.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}

// FileStore keeps the ledger in a single JSON file. Save writes a temp file
// in the same directory, fsyncs it and renames it over the target, so a
// crash leaves either the old or the new document.
type FileStore struct {
	path string
}

// NewFileStore создаёт файловое хранилище по указанному пути.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load читает документ. Отсутствующий файл не является ошибкой.
func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Save атомарно заменяет документ.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}

	// Best effort: persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Quarantine renames the current document to <path>.corrupt-<unix>.
func (s *FileStore) Quarantine(_ context.Context) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", s.path, err)
	}
	return dst, nil
}

var (
	_ Store       = (*FileStore)(nil)
	_ Quarantiner = (*FileStore)(nil)
)
