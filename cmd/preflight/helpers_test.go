package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/preflight-sh/preflight/internal/config"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/plugins"
	"github.com/preflight-sh/preflight/internal/plugins/service"
)

// writeProject drops a project file into a fresh directory and returns
// the directory.
func writeProject(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(yaml), 0o644))
	return dir
}

// executeCommand runs the CLI against a fully wired registry and returns
// what it wrote to each stream.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	registry := plugin.NewRegistry()
	require.NoError(t, plugins.RegisterAll(registry, service.Redis()))

	root := newRootCmd(registry)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err = root.Execute()
	return out.String(), errOut.String(), err
}
