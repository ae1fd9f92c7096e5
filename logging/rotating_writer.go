package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingFileWriter appends to a log file and rolls it over to numbered
// backups (app.log.1, app.log.2.gz, ...) once it grows past maxSize or
// gets older than maxAge. Backup 1 is always the most recent.
type RotatingFileWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	size       int64
	opened     time.Time
	maxSize    int64
	maxAge     time.Duration
	maxBackups int
	compress   bool
}

// NewRotatingFileWriter opens path for appending. A zero maxSize or maxAge
// disables that trigger; maxBackups <= 0 keeps a single backup.
func NewRotatingFileWriter(path string, maxSize int64, maxAge time.Duration, maxBackups int, compress bool) (*RotatingFileWriter, error) {
	if maxBackups <= 0 {
		maxBackups = 1
	}
	w := &RotatingFileWriter{
		path:       path,
		maxSize:    maxSize,
		maxAge:     maxAge,
		maxBackups: maxBackups,
		compress:   compress,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create log directory for %s: %w", w.path, err)
	}
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", w.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file %s: %w", w.path, err)
	}
	w.file = file
	w.size = info.Size()
	w.opened = time.Now()
	return nil
}

// Write appends data, rotating first when it would overflow the file
func (w *RotatingFileWriter) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.due(len(data)) {
		if err := w.rotate(); err != nil {
			// keep logging into whatever file is open
			if w.file == nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	n, err := w.file.Write(data)
	w.size += int64(n)
	return err
}

func (w *RotatingFileWriter) due(n int) bool {
	if w.size == 0 {
		return false
	}
	if w.maxSize > 0 && w.size+int64(n) > w.maxSize {
		return true
	}
	return w.maxAge > 0 && time.Since(w.opened) > w.maxAge
}

func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	// drop the oldest, then shift n -> n+1
	_ = os.Remove(w.backupName(w.maxBackups, false))
	_ = os.Remove(w.backupName(w.maxBackups, true))
	for n := w.maxBackups - 1; n >= 1; n-- {
		for _, gz := range []bool{false, true} {
			from := w.backupName(n, gz)
			if _, err := os.Stat(from); err == nil {
				if err := os.Rename(from, w.backupName(n+1, gz)); err != nil {
					return err
				}
			}
		}
	}

	first := w.backupName(1, false)
	if err := os.Rename(w.path, first); err != nil {
		_ = w.open()
		return err
	}
	if err := w.open(); err != nil {
		return err
	}
	if w.compress {
		if err := gzipFile(first, w.backupName(1, true)); err != nil {
			return fmt.Errorf("compress %s: %w", first, err)
		}
	}
	return nil
}

func (w *RotatingFileWriter) backupName(n int, gz bool) string {
	name := fmt.Sprintf("%s.%d", w.path, n)
	if gz {
		name += ".gz"
	}
	return name
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// ForceRotate rolls the file over regardless of size and age
func (w *RotatingFileWriter) ForceRotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rotate()
}

// Flush syncs the current file
func (w *RotatingFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the current file
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// GetName returns the name of the writer
func (w *RotatingFileWriter) GetName() string {
	return "rotating:" + w.path
}

// GetFilePath returns the file path
func (w *RotatingFileWriter) GetFilePath() string {
	return w.path
}
