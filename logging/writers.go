package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ConsoleWriter writes log entries to a terminal stream
type ConsoleWriter struct {
	mu     sync.Mutex
	writer *os.File
}

// NewConsoleWriter creates a console writer on stderr so program output on
// stdout stays clean
func NewConsoleWriter() *ConsoleWriter {
	return &ConsoleWriter{writer: os.Stderr}
}

// NewConsoleWriterWithFile creates a new console writer with a specific file
func NewConsoleWriterWithFile(file *os.File) *ConsoleWriter {
	return &ConsoleWriter{writer: file}
}

// Write writes data to the console
func (w *ConsoleWriter) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.writer.Write(data)
	return err
}

// Flush is a no-op; terminals are unbuffered
func (w *ConsoleWriter) Flush() error {
	return nil
}

// Close closes the underlying file unless it is stdout or stderr
func (w *ConsoleWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == os.Stdout || w.writer == os.Stderr {
		return nil
	}
	return w.writer.Close()
}

// GetName returns the name of the writer
func (w *ConsoleWriter) GetName() string {
	return "console"
}

// FileWriter appends log entries to a file
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
}

// NewFileWriter opens filePath for appending
func NewFileWriter(filePath string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", filePath, err)
	}
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", filePath, err)
	}
	return &FileWriter{file: file, filePath: filePath}, nil
}

// Write writes data to the file
func (w *FileWriter) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.file.Write(data)
	return err
}

// Flush syncs the file to disk
func (w *FileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Sync()
}

// Close closes the file
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}

// GetName returns the name of the writer
func (w *FileWriter) GetName() string {
	return "file"
}

// GetFilePath returns the file path
func (w *FileWriter) GetFilePath() string {
	return w.filePath
}

// MultiWriter fans entries out to several writers
type MultiWriter struct {
	mu      sync.RWMutex
	writers []Writer
}

// NewMultiWriter creates a new multi writer
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes data to every writer and reports the failures together
func (w *MultiWriter) Write(data []byte) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.each(func(wr Writer) error { return wr.Write(data) })
}

// Flush flushes every writer
func (w *MultiWriter) Flush() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.each(Writer.Flush)
}

// Close closes every writer
func (w *MultiWriter) Close() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.each(Writer.Close)
}

func (w *MultiWriter) each(f func(Writer) error) error {
	var failed []string
	for _, wr := range w.writers {
		if err := f(wr); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", wr.GetName(), err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("log writers failed: %s", strings.Join(failed, "; "))
	}
	return nil
}

// GetName returns the name of the writer
func (w *MultiWriter) GetName() string {
	return "multi"
}

// AddWriter adds a writer
func (w *MultiWriter) AddWriter(writer Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writers = append(w.writers, writer)
}

// NullWriter discards all log entries
type NullWriter struct{}

// NewNullWriter creates a new null writer
func NewNullWriter() *NullWriter {
	return &NullWriter{}
}

func (w *NullWriter) Write(data []byte) error { return nil }
func (w *NullWriter) Flush() error            { return nil }
func (w *NullWriter) Close() error            { return nil }
func (w *NullWriter) GetName() string         { return "null" }

// BufferWriter keeps entries in memory; the REPL and tests read them back
type BufferWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewBufferWriter creates an empty buffer writer
func NewBufferWriter() *BufferWriter {
	return &BufferWriter{}
}

func (w *BufferWriter) Write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.buf.Write(data)
	return err
}

func (w *BufferWriter) Flush() error    { return nil }
func (w *BufferWriter) Close() error    { return nil }
func (w *BufferWriter) GetName() string { return "buffer" }

// String returns everything written so far
func (w *BufferWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.buf.String()
}

// Lines returns the written entries, one per line
func (w *BufferWriter) Lines() []string {
	s := strings.TrimRight(w.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Reset drops the buffered entries
func (w *BufferWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
}

// CreateWriter builds a writer from a configured target: "stderr", "stdout",
// "null" or a file path. Rotation applies to file paths when maxSize > 0.
func CreateWriter(target string, maxSize int64, maxBackups int, compress bool) (Writer, error) {
	switch target {
	case "", "stderr":
		return NewConsoleWriter(), nil
	case "stdout":
		return NewConsoleWriterWithFile(os.Stdout), nil
	case "null", "none":
		return NewNullWriter(), nil
	}
	if maxSize > 0 {
		return NewRotatingFileWriter(target, maxSize, 0, maxBackups, compress)
	}
	return NewFileWriter(target)
}
