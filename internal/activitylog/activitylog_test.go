package activitylog

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z\] \[(INFO|ERROR)\] .+$`)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestOpenCreatesDirectoryAndMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", AppFolder)

	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, filepath.Join(dir, FileName), l.Path())

	lines := readLines(t, l.Path())
	require.Len(t, lines, 1)
	assert.Regexp(t, linePattern, lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "] [INFO] Log initialized"))
}

func TestOpenTruncatesPreviousRun(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	require.NoError(t, err)
	first.Info("App started", "run=1")
	first.Info("Switched window", "App=kitty, Title=one")
	require.NoError(t, first.Close())

	second, err := Open(dir)
	require.NoError(t, err)
	second.Info("App started", "run=2")
	require.NoError(t, second.Close())

	lines := readLines(t, filepath.Join(dir, FileName))
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Log initialized")
	assert.Contains(t, lines[1], "App started run=2")
	for _, line := range lines {
		assert.NotContains(t, line, "run=1")
	}
}

func TestInfoAndErrorLines(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	l.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC) }

	l.Info("Switched window", "App=Firefox, Title=Docs")
	l.Error("Screenshot failed", errors.New("no display"))
	l.Error("Unhandled", nil)
	require.NoError(t, l.Close())

	lines := readLines(t, filepath.Join(dir, FileName))
	require.Len(t, lines, 4)
	assert.Equal(t, "[2026-03-04T05:06:07.890Z] [INFO] Switched window App=Firefox, Title=Docs", lines[1])
	assert.Equal(t, "[2026-03-04T05:06:07.890Z] [ERROR] Screenshot failed no display", lines[2])
	assert.Equal(t, "[2026-03-04T05:06:07.890Z] [ERROR] Unhandled", lines[3])
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("CET", 3600))

	tests := []struct {
		name  string
		level Level
		msg   string
		data  string
		want  string
	}{
		{"no data", LevelInfo, "App started", "", "[2026-01-02T02:04:05.006Z] [INFO] App started\n"},
		{"with data", LevelError, "Screenshot failed", "timeout", "[2026-01-02T02:04:05.006Z] [ERROR] Screenshot failed timeout\n"},
		{"newlines folded", LevelInfo, "Switched window", "Title=a\nb", "[2026-01-02T02:04:05.006Z] [INFO] Switched window Title=a b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLine(ts, tt.level, tt.msg, tt.data))
		})
	}
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.NotPanics(t, func() {
		l.Info("late", "")
		l.Error("late", errors.New("x"))
	})
	assert.NoError(t, l.Close())
	assert.Len(t, readLines(t, filepath.Join(dir, FileName)), 1)
}

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() {
		l.Info("x", "y")
		l.Error("x", errors.New("y"))
	})
	assert.Equal(t, "", l.Path())
	assert.NoError(t, l.Close())
}

func TestOpenFailsWhenDirIsAFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := Open(filepath.Join(file, "sub"))
	assert.Error(t, err)
}

func TestDefaultDirEndsWithAppFolder(t *testing.T) {
	assert.Equal(t, AppFolder, filepath.Base(DefaultDir()))
}
