package capture

import (
	"fmt"
	"go.uber.org/multierr"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultLogDir     = "serial_logs"
	DefaultFilePrefix = "serial_data_"
)

// FileSink appends lines to a file and syncs after every line, so a crash loses at
// most the line being written.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

// OpenLogFile creates dir if needed and opens dir/<prefix><timestamp>.log.
func OpenLogFile(dir, prefix string, now time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	name := fmt.Sprintf("%s%s.log", prefix, now.Format("20060102_150405"))
	return NewFileSink(filepath.Join(dir, name))
}

func (s *FileSink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.file, line+"\n"); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *FileSink) Path() string {
	return s.file.Name()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// WriterSink echoes lines to a console or any other writer.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewWriterSink(w io.Writer, prefix string) *WriterSink {
	return &WriterSink{w: w, prefix: prefix}
}

func (s *WriterSink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s%s\n", s.prefix, line)
	return err
}

// MultiSink hands every line to all of its sinks, even when some of them fail.
type MultiSink []Sink

func (m MultiSink) Append(line string) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Append(line))
	}
	return err
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string) error

func (f SinkFunc) Append(line string) error {
	return f(line)
}
