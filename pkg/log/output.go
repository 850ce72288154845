package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ConsoleOutput writes formatted entries to stdout, or stderr for warnings
// and above when SplitStderr is set.
type ConsoleOutput struct {
	// SplitStderr routes WarnLevel and above to stderr.
	SplitStderr bool

	mu sync.Mutex
}

// NewConsoleOutput creates a console output with stderr splitting enabled.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{SplitStderr: true}
}

// Write implements Output.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var w io.Writer = os.Stdout
	if o.SplitStderr && entry.Level >= WarnLevel {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output. Console handles are not closed.
func (o *ConsoleOutput) Close() error { return nil }

// FileOutput appends formatted entries to a file, creating parent
// directories on first write.
type FileOutput struct {
	Path string

	mu   sync.Mutex
	file *os.File
}

// NewFileOutput creates a file output for the given path.
func NewFileOutput(path string) *FileOutput {
	return &FileOutput{Path: path}
}

// Write implements Output.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		if err := os.MkdirAll(filepath.Dir(o.Path), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(o.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.file = f
	}
	_, err := o.file.Write(formatted)
	return err
}

// Close implements Output.
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	return err
}

// NullOutput discards all entries. Useful in tests.
type NullOutput struct{}

// Write implements Output.
func (NullOutput) Write(*Entry, []byte) error { return nil }

// Close implements Output.
func (NullOutput) Close() error { return nil }
