package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflight-sh/preflight/internal/state"
)

func TestServicesCommandListsDeclarations(t *testing.T) {
	dir := writeProject(t, `
name: demo
services:
  PF_REDIS_URL: redis
`)

	stdout, _, err := executeCommand(t, "services", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "PF_REDIS_URL  redis\n", stdout)
}

func TestServicesCommandShowsRunningURL(t *testing.T) {
	dir := writeProject(t, `
name: demo
services:
  PF_REDIS_URL: redis
`)

	st, err := state.LoadForDirectory(dir)
	require.NoError(t, err)
	st.SetServiceRunState("PF_REDIS_URL", state.RunState{"url": "redis://localhost:6380"})
	require.NoError(t, st.Save())

	stdout, _, err := executeCommand(t, "services", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "PF_REDIS_URL  redis  redis://localhost:6380\n", stdout)
}

func TestServicesCommandWithNoneDeclared(t *testing.T) {
	dir := writeProject(t, "name: demo\n")

	stdout, _, err := executeCommand(t, "services", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No services declared in this project.")
}
