package engine

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/logger"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// fakeRequirement is satisfied when its variable is set, unless whyNot
// overrides that.
type fakeRequirement struct {
	envVar string
	whyNot func(env envmap.Map) string
}

func (r *fakeRequirement) EnvVar() string          { return r.envVar }
func (r *fakeRequirement) Title() string           { return r.envVar + " requirement" }
func (r *fakeRequirement) Options() map[string]any { return map[string]any{} }

func (r *fakeRequirement) WhyNotProvided(env envmap.Map) string {
	if r.whyNot != nil {
		return r.whyNot(env)
	}
	if env.Has(r.envVar) {
		return ""
	}
	return "environment variable is not set"
}

// fakeProvider declares per-requirement needs and records provide calls.
// Needs already present in the environment are not reported, like real
// providers.
type fakeProvider struct {
	name         string
	configNeeds  map[string][]string
	provideNeeds map[string][]string

	// dynamicProvideNeeds overrides provideNeeds when set.
	dynamicProvideNeeds func(req plugin.Requirement) []string

	readConfigErr error
	provideFn     func(req plugin.Requirement, ctx *plugin.ProvideContext)

	provided []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) MissingEnvVarsToConfigure(req plugin.Requirement, env envmap.Map, _ *state.File) []string {
	return filterPresent(p.configNeeds[req.EnvVar()], env)
}

func (p *fakeProvider) MissingEnvVarsToProvide(req plugin.Requirement, env envmap.Map, _ *state.File) []string {
	if p.dynamicProvideNeeds != nil {
		return filterPresent(p.dynamicProvideNeeds(req), env)
	}
	return filterPresent(p.provideNeeds[req.EnvVar()], env)
}

func (p *fakeProvider) ReadConfig(plugin.Requirement, *plugin.ConfigContext) (plugin.Config, error) {
	if p.readConfigErr != nil {
		return nil, p.readConfigErr
	}
	return plugin.Config{}, nil
}

func (p *fakeProvider) Provide(req plugin.Requirement, ctx *plugin.ProvideContext) {
	p.provided = append(p.provided, req.EnvVar())
	if p.provideFn != nil {
		p.provideFn(req, ctx)
		return
	}
	ctx.Env[req.EnvVar()] = "provided"
}

func filterPresent(vars []string, env envmap.Map) []string {
	var out []string
	for _, v := range vars {
		if !env.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// pairFor builds a single-provider pair.
func pairFor(envVar string, providers ...plugin.Provider) plugin.Pair {
	return plugin.Pair{Requirement: &fakeRequirement{envVar: envVar}, Providers: providers}
}

// recordingUI captures each configure checkpoint's pair batch.
type recordingUI struct {
	batches [][]string
}

func (u *recordingUI) Configure(ctx *ConfigureContext) {
	batch := make([]string, 0, len(ctx.Pairs))
	for _, pair := range ctx.Pairs {
		batch = append(batch, pair.EnvVar())
	}
	u.batches = append(u.batches, batch)
}

type testPreparer struct {
	preparer *Preparer
	registry *plugin.Registry
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	st       *state.File
	dir      string
}

func newTestPreparer(t *testing.T) *testPreparer {
	t.Helper()

	dir := t.TempDir()
	st, err := state.LoadForDirectory(dir)
	require.NoError(t, err)

	log, err := logger.New(logger.Options{Level: "debug", Writer: io.Discard})
	require.NoError(t, err)

	reg := plugin.NewRegistry()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &testPreparer{
		preparer: NewPreparer(reg, log, out, errOut),
		registry: reg,
		out:      out,
		errOut:   errOut,
		st:       st,
		dir:      dir,
	}
}

// registerFallbackKind makes the registry able to synthesize requirements
// for any variable, backed by the given provider.
func (tp *testPreparer) registerFallbackKind(t *testing.T, prov plugin.Provider) {
	t.Helper()

	require.NoError(t, tp.registry.RegisterProvider(prov))
	require.NoError(t, tp.registry.RegisterKind(plugin.Kind{
		Name: "test-value",
		New: func(envVar string, options map[string]any) (plugin.Requirement, error) {
			return &fakeRequirement{envVar: envVar}, nil
		},
		Providers: []string{prov.Name()},
	}))
}

func keysOf(pairs []plugin.Pair) []string {
	keys := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		keys = append(keys, pair.EnvVar())
	}
	return keys
}

func fmtLines(buf *bytes.Buffer) string {
	return fmt.Sprintf("output was:\n%s", buf.String())
}
