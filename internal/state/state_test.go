package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadForDirectoryMissingFile(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, f.Values())
	assert.Empty(t, f.AllServiceRunStates())

	_, ok := f.Value("ANYTHING")
	assert.False(t, ok)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)

	f.SetValue("DB_PASSWORD", "hunter2")
	f.SetServiceRunState("REDIS_URL", RunState{
		"port":              6379,
		"url":               "redis://localhost:6379",
		"shutdown_commands": []any{[]any{"kill", "1234"}},
	})
	require.NoError(t, f.Save())

	reloaded, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)

	v, ok := reloaded.Value("DB_PASSWORD")
	require.True(t, ok)
	assert.Equal(t, "hunter2", v)

	rs := reloaded.ServiceRunState("REDIS_URL")
	assert.Equal(t, 6379, rs["port"])
	assert.Equal(t, "redis://localhost:6379", rs["url"])
	require.Len(t, rs["shutdown_commands"], 1)
}

func TestSaveWritesHeaderAndIsAtomic(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)
	f.SetValue("FOO", "bar")
	require.NoError(t, f.Save())

	data, err := os.ReadFile(filepath.Join(tmpDir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Preflight local state")

	_, err = os.Stat(filepath.Join(tmpDir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnsetValueRemovesEntry(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)

	f.SetValue("FOO", "bar")
	f.UnsetValue("FOO")

	_, ok := f.Value("FOO")
	assert.False(t, ok)
}

func TestSetServiceRunStateEmptyClearsEntry(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)

	f.SetServiceRunState("REDIS_URL", RunState{"port": 6379})
	f.SetServiceRunState("REDIS_URL", RunState{})

	assert.Empty(t, f.AllServiceRunStates())
}

func TestRunStateCopiesAreIndependent(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)

	f.SetServiceRunState("REDIS_URL", RunState{"shutdown_commands": []any{[]any{"kill", "1"}}})

	rs := f.ServiceRunState("REDIS_URL")
	rs["port"] = 9999
	rs["shutdown_commands"].([]any)[0] = "mutated"

	fresh := f.ServiceRunState("REDIS_URL")
	assert.NotContains(t, fresh, "port")
	assert.Equal(t, []any{"kill", "1"}, fresh["shutdown_commands"].([]any)[0])
}

func TestReloadDiscardsUnsavedChanges(t *testing.T) {
	tmpDir := t.TempDir()

	f, err := LoadForDirectory(tmpDir)
	require.NoError(t, err)
	f.SetValue("KEEP", "yes")
	require.NoError(t, f.Save())

	f.SetValue("DISCARD", "no")
	require.NoError(t, f.Reload())

	_, ok := f.Value("DISCARD")
	assert.False(t, ok)
	v, ok := f.Value("KEEP")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestLoadForDirectoryRejectsCorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte(":\tnot yaml"), 0o644))

	_, err := LoadForDirectory(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse state file")
}
