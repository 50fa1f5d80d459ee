// =============================================
// File: internal/audit/log.go
// =============================================
// Package audit writes the append-only trail of every trade outcome.
// The service never reads it back.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed возвращается при записи в закрытый журнал.
var ErrClosed = errors.New("audit log closed")

// Writer is what the trading components depend on.
type Writer interface {
	Append(rec Record) error
}

// Log is a JSON Lines file opened in append mode. Each record is synced to
// disk before Append returns.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *zap.Logger

	written uint64
	now     func() time.Time
}

// Open открывает (или создаёт) файл журнала.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &Log{
		file:   file,
		path:   path,
		logger: logger.Named("audit"),
		now:    time.Now,
	}, nil
}

// Append assigns id and timestamp when missing and writes one line.
func (l *Log) Append(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	l.written++

	l.logger.Debug("Audit record written",
		zap.String("event", string(rec.Event)),
		zap.String("mint", rec.AssetID),
		zap.String("id", rec.ID))
	return nil
}

// Path returns the file path of the log.
func (l *Log) Path() string {
	return l.path
}

// Close закрывает файл. Повторный вызов безопасен.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil

	l.logger.Info("Audit log closed",
		zap.String("file", l.path),
		zap.Uint64("records", l.written))

	if err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

var _ Writer = (*Log)(nil)
