package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareCommandSucceedsWithDefaults(t *testing.T) {
	dir := writeProject(t, `
name: demo
variables:
  PF_GREETING:
    default: hello
`)

	stdout, stderr, err := executeCommand(t, "prepare", "--dir", dir, "--non-interactive")
	require.NoError(t, err)

	assert.Contains(t, stdout, "ready: value for PF_GREETING")
	assert.Contains(t, stdout, "The project is ready to run.")
	assert.NotContains(t, stderr, "missing requirement")
}

func TestPrepareCommandReportsMissingValues(t *testing.T) {
	dir := writeProject(t, `
name: demo
variables:
  PF_UNSET_VALUE:
`)

	stdout, stderr, err := executeCommand(t, "prepare", "--dir", dir, "--non-interactive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to prepare project demo")

	assert.Contains(t, stderr, "missing requirement to run this project: value for PF_UNSET_VALUE")
	assert.Contains(t, stdout, "missing: value for PF_UNSET_VALUE (environment variable is not set)")
	assert.NotContains(t, stdout, "The project is ready to run.")
}

func TestPrepareCommandRejectsBrokenProjectFile(t *testing.T) {
	dir := writeProject(t, "name: [")

	_, _, err := executeCommand(t, "prepare", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestPrepareCommandRequiresAProjectFile(t *testing.T) {
	dir := t.TempDir()

	_, _, err := executeCommand(t, "prepare", "--dir", dir)
	require.Error(t, err)
}
