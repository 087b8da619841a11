package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/state"
)

// ConfigContext carries what a provider may read while resolving its
// configuration. It lives for one ReadConfig call.
type ConfigContext struct {
	Env        envmap.Map
	State      *state.File
	ProjectDir string
}

// ProvideContext carries the working environment and state into one Provide
// call and accumulates that call's logs and errors. Logs are informational
// and go to the output channel; errors mark the requirement as failed for
// this attempt. Not persisted; one context per provider invocation.
type ProvideContext struct {
	Env        envmap.Map
	State      *state.File
	Config     Config
	ProjectDir string

	// RunID identifies the preparation run that made this call, so
	// providers can tag run state they write.
	RunID string

	logs   []string
	errors []string
}

// Log records an informational line for the caller to print on stdout.
func (c *ProvideContext) Log(msg string) {
	c.logs = append(c.logs, msg)
}

// Logf records a formatted informational line.
func (c *ProvideContext) Logf(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// RecordError records a terminal problem with this provide attempt.
func (c *ProvideContext) RecordError(msg string) {
	c.errors = append(c.errors, msg)
}

// RecordErrorf records a formatted terminal problem.
func (c *ProvideContext) RecordErrorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

// Logs returns the accumulated informational lines in record order.
func (c *ProvideContext) Logs() []string {
	return c.logs
}

// Errors returns the accumulated problems in record order.
func (c *ProvideContext) Errors() []string {
	return c.errors
}

// Failed reports whether any error was recorded.
func (c *ProvideContext) Failed() bool {
	return len(c.errors) > 0
}

// EnsureServiceDir creates (if needed) and returns the project-relative
// directory a service provider may use for pid and log files. Teardown
// removes it when the service's run state is cleared.
func (c *ProvideContext) EnsureServiceDir(envVar string) (string, error) {
	dir := ServiceDir(c.ProjectDir, envVar)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create service directory %s: %w", dir, err)
	}
	return dir, nil
}

// ServiceDir returns the conventional services/<VAR> path for a project
// without creating it.
func ServiceDir(projectDir, envVar string) string {
	return filepath.Join(projectDir, "services", envVar)
}
