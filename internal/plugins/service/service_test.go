package service

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

func newStateFile(t *testing.T, dir string) *state.File {
	t.Helper()
	st, err := state.LoadForDirectory(dir)
	require.NoError(t, err)
	return st
}

func listenLocal(t *testing.T) (net.Listener, int) {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, l.Addr().(*net.TCPAddr).Port
}

func killRecordedService(t *testing.T, st *state.File, envVar string) {
	t.Helper()
	rs := st.ServiceRunState(envVar)
	require.NotNil(t, rs)
	pid, ok := rs["pid"].(int)
	require.True(t, ok)
	t.Cleanup(func() {
		if proc, err := os.FindProcess(pid); err == nil {
			_ = proc.Kill()
		}
	})
}

func TestRequirementWhyNotProvided(t *testing.T) {
	t.Parallel()

	req := NewRequirement("REDIS_URL", "redis")
	assert.Equal(t, "running redis service", req.Title())
	assert.Equal(t, map[string]any{"type": "redis"}, req.Options())

	assert.Equal(t, "environment variable is not set", req.WhyNotProvided(envmap.Map{}))
	assert.Equal(t, "environment variable is not set", req.WhyNotProvided(envmap.Map{"REDIS_URL": ""}))
	assert.Contains(t, req.WhyNotProvided(envmap.Map{"REDIS_URL": "not a url"}), "is not a redis URL")
	assert.Contains(t, req.WhyNotProvided(envmap.Map{"REDIS_URL": "http://localhost:1234"}), "is not a redis URL")
	assert.Contains(t, req.WhyNotProvided(envmap.Map{"REDIS_URL": "redis://localhost"}), "with a port")
}

func TestRequirementSatisfiedByAnsweringService(t *testing.T) {
	t.Parallel()

	_, port := listenLocal(t)
	req := NewRequirement("STUB_URL", "stub")

	answering := fmt.Sprintf("stub://localhost:%d", port)
	assert.Empty(t, req.WhyNotProvided(envmap.Map{"STUB_URL": answering}))

	closed, silentPort := listenLocal(t)
	closed.Close()
	silent := fmt.Sprintf("stub://localhost:%d", silentPort)
	assert.Contains(t, req.WhyNotProvided(envmap.Map{"STUB_URL": silent}), "nothing is answering")
}

func TestProvideStartsServiceAndRecordsRunState(t *testing.T) {
	dir := t.TempDir()
	st := newStateFile(t, dir)

	spec := Spec{
		Type:      "stub",
		LowerPort: 34100,
		UpperPort: 34150,
		Args: func(workDir string, port int) []string {
			// Stand in for the service so the provider sees the port
			// answering.
			l, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
			require.NoError(t, err)
			t.Cleanup(func() { l.Close() })
			return []string{"sleep", "60"}
		},
	}
	prov := NewProvider(spec)
	prov.pollInterval = 10 * time.Millisecond

	env := envmap.Map{}
	ctx := &plugin.ProvideContext{Env: env, State: st, ProjectDir: dir, RunID: "run-1"}
	prov.Provide(NewRequirement("STUB_URL", "stub"), ctx)
	killRecordedService(t, st, "STUB_URL")

	require.False(t, ctx.Failed(), "errors: %v", ctx.Errors())

	rs := st.ServiceRunState("STUB_URL")
	require.NotNil(t, rs)
	port := rs["port"].(int)
	pid := rs["pid"].(int)
	assert.GreaterOrEqual(t, port, 34100)
	assert.LessOrEqual(t, port, 34150)
	assert.Equal(t, "stub", rs["type"])
	assert.Equal(t, "run-1", rs["run_id"])
	assert.Equal(t, fmt.Sprintf("stub://localhost:%d", port), rs["url"])
	assert.Equal(t, [][]string{{"kill", strconv.Itoa(pid)}}, rs[state.ShutdownCommandsKey])

	assert.Equal(t, fmt.Sprintf("stub://localhost:%d", port), env["STUB_URL"])

	serviceDir := plugin.ServiceDir(dir, "STUB_URL")
	pidBytes, err := os.ReadFile(filepath.Join(serviceDir, "stub.pid"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(pid)+"\n", string(pidBytes))
	assert.FileExists(t, filepath.Join(serviceDir, "stub.log"))

	// The run state was saved before the service was known healthy.
	reloaded := newStateFile(t, dir)
	assert.NotNil(t, reloaded.ServiceRunState("STUB_URL"))

	require.NotEmpty(t, ctx.Logs())
	assert.Contains(t, ctx.Logs()[0], "started stub at")
}

func TestProvideReusesAnsweringService(t *testing.T) {
	dir := t.TempDir()
	st := newStateFile(t, dir)
	_, port := listenLocal(t)

	recorded := fmt.Sprintf("stub://localhost:%d", port)
	st.SetServiceRunState("STUB_URL", state.RunState{"url": recorded, "port": port})

	launched := false
	spec := Spec{
		Type:      "stub",
		LowerPort: 34100,
		UpperPort: 34150,
		Args: func(string, int) []string {
			launched = true
			return []string{"sleep", "60"}
		},
	}
	prov := NewProvider(spec)

	env := envmap.Map{}
	ctx := &plugin.ProvideContext{Env: env, State: st, ProjectDir: dir, RunID: "run-2"}
	prov.Provide(NewRequirement("STUB_URL", "stub"), ctx)

	require.False(t, ctx.Failed(), "errors: %v", ctx.Errors())
	assert.False(t, launched)
	assert.Equal(t, recorded, env["STUB_URL"])
	require.NotEmpty(t, ctx.Logs())
	assert.Contains(t, ctx.Logs()[0], "already running")
}

func TestProvideTimesOutWhenServiceNeverAnswers(t *testing.T) {
	dir := t.TempDir()
	st := newStateFile(t, dir)

	spec := Spec{
		Type:      "stub",
		LowerPort: 34200,
		UpperPort: 34250,
		Args: func(string, int) []string {
			return []string{"sleep", "60"}
		},
	}
	prov := NewProvider(spec)
	prov.startTimeout = 200 * time.Millisecond
	prov.pollInterval = 20 * time.Millisecond

	env := envmap.Map{}
	ctx := &plugin.ProvideContext{Env: env, State: st, ProjectDir: dir, RunID: "run-3"}
	prov.Provide(NewRequirement("STUB_URL", "stub"), ctx)
	killRecordedService(t, st, "STUB_URL")

	require.True(t, ctx.Failed())
	assert.Contains(t, ctx.Errors()[0], "did not start answering")
	assert.False(t, env.Has("STUB_URL"))

	// Teardown can still find and stop the hung service.
	rs := st.ServiceRunState("STUB_URL")
	require.NotNil(t, rs)
	assert.NotEmpty(t, rs[state.ShutdownCommandsKey])
}

func TestProvideUnknownServiceType(t *testing.T) {
	dir := t.TempDir()
	st := newStateFile(t, dir)
	prov := NewProvider()

	req := NewRequirement("KAFKA_URL", "kafka")
	_, err := prov.ReadConfig(req, &plugin.ConfigContext{Env: envmap.Map{}, State: st, ProjectDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no service spec registered for type "kafka"`)

	ctx := &plugin.ProvideContext{Env: envmap.Map{}, State: st, ProjectDir: dir}
	prov.Provide(req, ctx)
	require.True(t, ctx.Failed())
}

func TestKindRecognition(t *testing.T) {
	t.Parallel()

	prov := NewProvider(Redis())
	kind := Kind(prov)

	assert.True(t, kind.CanHandle("ANY_VAR", map[string]any{"type": "redis"}))
	assert.True(t, kind.CanHandle("REDIS_URL", map[string]any{}))
	assert.False(t, kind.CanHandle("DATABASE_URL", map[string]any{}))
	assert.False(t, kind.CanHandle("REDIS_PORT", map[string]any{}))

	req, err := kind.New("REDIS_URL", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "redis", req.(*Requirement).Type())

	_, err = kind.New("DATABASE_URL", map[string]any{})
	require.Error(t, err)

	// An explicit type is only accepted when a spec is registered for it.
	_, err = kind.New("QUEUE_URL", map[string]any{"type": "kafka"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no service spec registered for type "kafka"`)
}

func TestRedisSpec(t *testing.T) {
	t.Parallel()

	spec := Redis()
	assert.Equal(t, "redis", spec.Type)
	assert.Equal(t, 6380, spec.LowerPort)
	assert.Equal(t, 6449, spec.UpperPort)
	assert.Equal(t, "redis://localhost:6385", spec.URL(6385))
	assert.Equal(t, []string{"redis-server", "--port", "6385", "--dir", "/tmp/svc"},
		spec.Args("/tmp/svc", 6385))
}
