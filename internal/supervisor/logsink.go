package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// logSink backs ProcessConfig.LogDir: one append-only file per process
// name, written to by the Stdio transport's stderr drain and by crash
// diagnostics from the monitor task.
type logSink struct {
	file *os.File
}

func newLogSink(dir, name string) (*logSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("supervisor: create log dir: %w", err)
	}
	path := filepath.Join(dir, name+".log")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open log file: %w", err)
	}
	return &logSink{file: f}, nil
}

func (l *logSink) Write(p []byte) (int, error) { return l.file.Write(p) }

// WriteLine appends a timestamped diagnostic line, used for crash
// bookkeeping that isn't part of the child's raw stderr stream.
func (l *logSink) WriteLine(msg string) {
	if l == nil || l.file == nil {
		return
	}
	fmt.Fprintf(l.file, "%s %s\n", time.Now().UTC().Format(time.RFC3339), msg)
}

func (l *logSink) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
