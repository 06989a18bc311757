package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FocusLog/internal/window"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "current", "screenshot", "config", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	configNames := map[string]bool{}
	for _, c := range configCmd.Commands() {
		configNames[c.Name()] = true
	}
	for _, want := range []string{"show", "get", "set", "path"} {
		assert.True(t, configNames[want], "missing config subcommand %s", want)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "focuslog "+Version+"\n", out)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	_, err = execute(t, "--config", path, "config", "set", "screenshot.quality", "65")
	require.NoError(t, err)

	out, err = execute(t, "--config", path, "config", "get", "screenshot.quality")
	require.NoError(t, err)
	assert.Equal(t, "65", strings.TrimSpace(out))

	_, err = execute(t, "--config", path, "config", "set", "screenshot.quality", "500")
	assert.Error(t, err)

	_, err = execute(t, "--config", path, "config", "get", "no_such_key")
	assert.Error(t, err)

	formatFlag = "json"
	t.Cleanup(func() { formatFlag = "yaml" })
	out, err = execute(t, "--config", path, "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.EqualValues(t, 8080, cfg["server_port"])
}

func TestPrintWindow(t *testing.T) {
	info := &window.Info{ID: 0x4a00007, Title: "README.md", OwnerName: "code", PID: 4242}

	var buf bytes.Buffer
	require.NoError(t, printWindow(&buf, info, "text"))
	assert.Contains(t, buf.String(), "App:   code")
	assert.Contains(t, buf.String(), "Title: README.md")
	assert.Contains(t, buf.String(), "ID:    0x4a00007")

	buf.Reset()
	require.NoError(t, printWindow(&buf, info, "json"))
	var decoded window.Info
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *info, decoded)

	buf.Reset()
	require.NoError(t, printWindow(&buf, nil, "text"))
	assert.Equal(t, "No window is currently focused\n", buf.String())
}

func TestCurrentRejectsUnknownFormat(t *testing.T) {
	t.Cleanup(func() { currentFormat = "text" })
	_, err := execute(t, "current", "--format", "xml")
	assert.Error(t, err)
}
