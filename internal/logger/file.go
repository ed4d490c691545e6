package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// defaultMaxLogBytes caps the JSONL log before rotation to a single
// .1 backup.
const defaultMaxLogBytes = 10 * 1024 * 1024

// FileLogger appends one JSON record per line to a local file.
type FileLogger struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileLogger opens (or creates) the JSONL log at path, rotating
// first if the existing file has reached the size cap.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := rotateIfNeeded(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileLogger{path: path, file: file}, nil
}

func rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < defaultMaxLogBytes {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}

func (l *FileLogger) Name() string { return "file:" + l.path }

func (l *FileLogger) Log(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *FileLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
