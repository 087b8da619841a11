// Package service launches project-local services and exposes them to the
// project through URL environment variables. Each launched service gets a
// services/<VAR> directory for its pid and log files, and a run-state
// entry with the shutdown commands teardown replays.
package service

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/netutil"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// ProviderName is the registry name of the service provider.
const ProviderName = "service"

// KindName is the registry name of the service requirement kind.
const KindName = "service"

const localHost = "localhost"

// Requirement is satisfied when its variable holds a URL of the service's
// scheme and something answers at that address.
type Requirement struct {
	envVar  string
	typ     string
	options map[string]any
}

// NewRequirement builds a requirement for one declared service.
func NewRequirement(envVar, serviceType string) *Requirement {
	return &Requirement{
		envVar:  envVar,
		typ:     serviceType,
		options: map[string]any{"type": serviceType},
	}
}

func (r *Requirement) EnvVar() string          { return r.envVar }
func (r *Requirement) Options() map[string]any { return r.options }

// Type returns the service type from the project file.
func (r *Requirement) Type() string { return r.typ }

func (r *Requirement) Title() string {
	return fmt.Sprintf("running %s service", r.typ)
}

func (r *Requirement) WhyNotProvided(env envmap.Map) string {
	value, ok := env[r.envVar]
	if !ok || value == "" {
		return "environment variable is not set"
	}

	host, port, why := r.parseURL(value)
	if why != "" {
		return why
	}
	if !netutil.CanConnect(host, port, netutil.DefaultDialTimeout) {
		return fmt.Sprintf("nothing is answering at %s", value)
	}
	return ""
}

func (r *Requirement) parseURL(value string) (host string, port int, why string) {
	bad := fmt.Sprintf("%s is not a %s URL with a port", value, r.typ)

	u, err := url.Parse(value)
	if err != nil || u.Scheme != r.typ || u.Port() == "" {
		return "", 0, bad
	}
	port, err = strconv.Atoi(u.Port())
	if err != nil {
		return "", 0, bad
	}
	host = u.Hostname()
	if host == "" {
		host = localHost
	}
	return host, port, ""
}

// Provider launches services from registered specs and records how to
// shut them down.
type Provider struct {
	specs map[string]Spec

	startTimeout time.Duration
	pollInterval time.Duration
}

// NewProvider returns a provider that can launch the given specs.
func NewProvider(specs ...Spec) *Provider {
	p := &Provider{
		specs:        make(map[string]Spec, len(specs)),
		startTimeout: 10 * time.Second,
		pollInterval: 100 * time.Millisecond,
	}
	for _, s := range specs {
		p.specs[s.Type] = s
	}
	return p
}

var _ plugin.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return ProviderName }

// HasSpec reports whether a service type is registered.
func (p *Provider) HasSpec(typ string) bool {
	_, ok := p.specs[typ]
	return ok
}

func (p *Provider) MissingEnvVarsToConfigure(plugin.Requirement, envmap.Map, *state.File) []string {
	return nil
}

func (p *Provider) MissingEnvVarsToProvide(plugin.Requirement, envmap.Map, *state.File) []string {
	return nil
}

func (p *Provider) ReadConfig(req plugin.Requirement, _ *plugin.ConfigContext) (plugin.Config, error) {
	r, ok := req.(*Requirement)
	if !ok {
		return nil, fmt.Errorf("requirement %s is not a service requirement", req.EnvVar())
	}
	spec, ok := p.specs[r.typ]
	if !ok {
		return nil, fmt.Errorf("no service spec registered for type %q", r.typ)
	}
	return plugin.Config{
		"type":       spec.Type,
		"lower_port": spec.LowerPort,
		"upper_port": spec.UpperPort,
	}, nil
}

// Provide reuses a still-answering service from a previous run, or scans
// for a free port, launches the service detached with its output in
// services/<VAR>/<type>.log, and records the run state before waiting for
// the port to answer. Recording first means a service that hangs during
// startup is still found by teardown.
func (p *Provider) Provide(req plugin.Requirement, ctx *plugin.ProvideContext) {
	r, ok := req.(*Requirement)
	if !ok {
		ctx.RecordErrorf("requirement %s is not a service requirement", req.EnvVar())
		return
	}
	spec, ok := p.specs[r.typ]
	if !ok {
		ctx.RecordErrorf("no service spec registered for type %q", r.typ)
		return
	}

	if serviceURL, ok := p.runningFromPreviousRun(r, ctx); ok {
		ctx.Env[r.envVar] = serviceURL
		ctx.Logf("%s is already running at %s", spec.Type, serviceURL)
		return
	}

	port, ok := netutil.FirstFreePort(localHost, spec.LowerPort, spec.UpperPort)
	if !ok {
		ctx.RecordErrorf("no free port for %s between %d and %d", spec.Type, spec.LowerPort, spec.UpperPort)
		return
	}

	dir, err := ctx.EnsureServiceDir(r.envVar)
	if err != nil {
		ctx.RecordError(err.Error())
		return
	}

	args := spec.Args(dir, port)
	if len(args) == 0 {
		ctx.RecordErrorf("service spec %s produced no command", spec.Type)
		return
	}

	logFile, err := os.Create(filepath.Join(dir, spec.Type+".log"))
	if err != nil {
		ctx.RecordErrorf("unable to create log file for %s: %s", spec.Type, err)
		return
	}
	defer logFile.Close()

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		ctx.RecordErrorf("unable to start %s (%s): %s", spec.Type, strings.Join(args, " "), err)
		return
	}

	pid := cmd.Process.Pid
	serviceURL := spec.URL(port)

	pidPath := filepath.Join(dir, spec.Type+".pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		ctx.RecordErrorf("unable to write pid file for %s: %s", spec.Type, err)
	}

	ctx.State.SetServiceRunState(r.envVar, state.RunState{
		"type":                    spec.Type,
		"port":                    port,
		"pid":                     pid,
		"url":                     serviceURL,
		"run_id":                  ctx.RunID,
		state.ShutdownCommandsKey: [][]string{{"kill", strconv.Itoa(pid)}},
	})
	if err := ctx.State.Save(); err != nil {
		ctx.RecordErrorf("unable to save run state for %s: %s", r.envVar, err)
		return
	}

	_ = cmd.Process.Release()

	if !p.waitUntilAnswering(localHost, port) {
		ctx.RecordErrorf("%s did not start answering on port %d", spec.Type, port)
		return
	}

	ctx.Env[r.envVar] = serviceURL
	ctx.Logf("started %s at %s", spec.Type, serviceURL)
}

// runningFromPreviousRun answers with the recorded URL when the service a
// previous run launched still accepts connections.
func (p *Provider) runningFromPreviousRun(r *Requirement, ctx *plugin.ProvideContext) (string, bool) {
	rs := ctx.State.ServiceRunState(r.envVar)
	if rs == nil {
		return "", false
	}

	serviceURL, _ := rs["url"].(string)
	port, ok := intValue(rs["port"])
	if serviceURL == "" || !ok {
		return "", false
	}
	if !netutil.CanConnect(localHost, port, netutil.DefaultDialTimeout) {
		return "", false
	}
	return serviceURL, true
}

func (p *Provider) waitUntilAnswering(host string, port int) bool {
	deadline := time.Now().Add(p.startTimeout)
	for time.Now().Before(deadline) {
		if netutil.CanConnect(host, port, netutil.DefaultDialTimeout) {
			return true
		}
		time.Sleep(p.pollInterval)
	}
	return netutil.CanConnect(host, port, netutil.DefaultDialTimeout)
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Kind recognizes service requirements two ways: explicit {"type": ...}
// options from the project file's services section, or a SOMETHING_URL
// variable whose lowercased prefix names a registered spec.
func Kind(p *Provider) plugin.Kind {
	return plugin.Kind{
		Name: KindName,
		CanHandle: func(envVar string, options map[string]any) bool {
			if typ, ok := options["type"].(string); ok && typ != "" {
				return true
			}
			typ, ok := typeFromEnvVar(envVar)
			return ok && p.HasSpec(typ)
		},
		New: func(envVar string, options map[string]any) (plugin.Requirement, error) {
			if typ, ok := options["type"].(string); ok && typ != "" {
				if !p.HasSpec(typ) {
					return nil, fmt.Errorf("no service spec registered for type %q", typ)
				}
				return NewRequirement(envVar, typ), nil
			}
			if typ, ok := typeFromEnvVar(envVar); ok && p.HasSpec(typ) {
				return NewRequirement(envVar, typ), nil
			}
			return nil, fmt.Errorf("cannot determine the service type for %s", envVar)
		},
		Providers: []string{ProviderName},
	}
}

// typeFromEnvVar maps REDIS_URL to "redis".
func typeFromEnvVar(envVar string) (string, bool) {
	if !strings.HasSuffix(envVar, "_URL") {
		return "", false
	}
	typ := strings.ToLower(strings.TrimSuffix(envVar, "_URL"))
	return typ, typ != ""
}
