// Package activitylog writes the plain-text activity log kept next to the
// user's documents. The file is recreated on every start and receives one
// line per event:
//
//	[2006-01-02T15:04:05.000Z] [INFO] Switched window App=kitty, Title=~
//
// Writes are best effort. No method returns an error or panics, and a nil
// *Log discards everything.
package activitylog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

const (
	// AppFolder is the directory created under the documents dir
	AppFolder = "FocusLog"
	// FileName is the log file name inside AppFolder
	FileName = "activity.log"

	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Level is the bracketed level written on each line
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Log is an append-only activity log file
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time
}

// DefaultDir returns <documents dir>/FocusLog
func DefaultDir() string {
	return filepath.Join(xdg.UserDirs.Documents, AppFolder)
}

// Open creates dir if needed, truncates the log file inside it and writes
// the startup marker.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}

	l := &Log{
		file: file,
		path: path,
		now:  time.Now,
	}
	l.write(LevelInfo, "Log initialized", "")
	return l, nil
}

// Path returns the log file location
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Info appends an INFO line
func (l *Log) Info(msg, data string) {
	logger.WithComponent("activity").Info().Msg(joinMessage(msg, data))
	l.write(LevelInfo, msg, data)
}

// Error appends an ERROR line with the error text as data
func (l *Log) Error(msg string, err error) {
	data := ""
	if err != nil {
		data = err.Error()
	}
	logger.WithComponent("activity").Error().Stack().Err(err).Msg(msg)
	l.write(LevelError, msg, data)
}

// Close flushes and closes the file. Further writes are dropped.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Log) write(level Level, msg, data string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	line := FormatLine(l.now(), level, msg, data)
	// best effort
	_, _ = l.file.WriteString(line)
}

// FormatLine renders a single log line, newline included
func FormatLine(ts time.Time, level Level, msg, data string) string {
	return fmt.Sprintf("[%s] [%s] %s\n", ts.UTC().Format(timestampFormat), level, singleLine(joinMessage(msg, data)))
}

func joinMessage(msg, data string) string {
	if data == "" {
		return msg
	}
	return msg + " " + data
}

// singleLine keeps one event per line when titles or errors carry newlines
func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
