// Package envvalue satisfies plain environment-variable requirements from
// values the user already supplied: the run-state variables section, the
// project-file default, or an encrypted value unlocked with the master
// password. It backs the registry's fallback kind, so any variable no
// other kind claims becomes a plain value requirement.
package envvalue

import (
	"fmt"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/secret"
	"github.com/preflight-sh/preflight/internal/state"
)

// ProviderName is the registry name of the value provider.
const ProviderName = "envvalue"

// KindName is the registry name of the plain value requirement kind.
const KindName = "value"

// Requirement is a plain environment-variable requirement: satisfied as
// soon as the variable is set to a non-empty string.
type Requirement struct {
	envVar  string
	options map[string]any
}

// NewRequirement builds a value requirement. Recognized options are
// "description", "default" and "encrypted".
func NewRequirement(envVar string, options map[string]any) *Requirement {
	if options == nil {
		options = map[string]any{}
	}
	return &Requirement{envVar: envVar, options: options}
}

func (r *Requirement) EnvVar() string          { return r.envVar }
func (r *Requirement) Options() map[string]any { return r.options }

func (r *Requirement) Title() string {
	return fmt.Sprintf("value for %s", r.envVar)
}

// Description returns the project-file description, or "".
func (r *Requirement) Description() string {
	d, _ := r.options["description"].(string)
	return d
}

// CanResolve reports whether the provider has any source for this
// variable: a stored value, a default, or an encrypted payload. When it
// is false the only way to satisfy the requirement is for the user to
// supply a value.
func (r *Requirement) CanResolve(st *state.File) bool {
	source, _ := r.resolveSource(st)
	return source != "unset"
}

func (r *Requirement) WhyNotProvided(env envmap.Map) string {
	value, ok := env[r.envVar]
	if !ok {
		return "environment variable is not set"
	}
	if value == "" {
		return "environment variable is set to an empty string"
	}
	return ""
}

func (r *Requirement) defaultValue() (string, bool) {
	v, ok := r.options["default"].(string)
	return v, ok
}

func (r *Requirement) encryptedValue() (string, bool) {
	v, ok := r.options["encrypted"].(string)
	return v, ok && v != ""
}

// isMasterPassword guards the variable that unlocks encrypted values: it
// is never read from or written to the state file.
func (r *Requirement) isMasterPassword() bool {
	return r.envVar == secret.MasterPasswordVar
}

// Provider resolves a value requirement from stored values, defaults and
// encrypted payloads, in that order.
type Provider struct{}

// NewProvider returns the value provider.
func NewProvider() *Provider { return &Provider{} }

var _ plugin.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) MissingEnvVarsToConfigure(plugin.Requirement, envmap.Map, *state.File) []string {
	return nil
}

// MissingEnvVarsToProvide reports the master password when decrypting is
// the only way left to produce the value, which makes the password itself
// a requirement of the preparation run.
func (p *Provider) MissingEnvVarsToProvide(req plugin.Requirement, env envmap.Map, st *state.File) []string {
	r, ok := req.(*Requirement)
	if !ok || env.Has(r.envVar) {
		return nil
	}
	if source, _ := r.resolveSource(st); source != "encrypted" {
		return nil
	}
	if env.Has(secret.MasterPasswordVar) {
		return nil
	}
	return []string{secret.MasterPasswordVar}
}

// ReadConfig resolves which source will produce the value: "stored",
// "default", "encrypted" or "unset".
func (p *Provider) ReadConfig(req plugin.Requirement, ctx *plugin.ConfigContext) (plugin.Config, error) {
	r, ok := req.(*Requirement)
	if !ok {
		return nil, fmt.Errorf("requirement %s is not a value requirement", req.EnvVar())
	}

	switch source, value := r.resolveSource(ctx.State); source {
	case "stored", "default":
		return plugin.Config{"source": source, "value": value}, nil
	case "encrypted":
		return plugin.Config{"source": source, "encrypted": value}, nil
	default:
		return plugin.Config{"source": source}, nil
	}
}

// Provide sets the variable from the resolved source. A requirement with
// no source at all is left unset so the run reports it as something the
// user must supply.
func (p *Provider) Provide(req plugin.Requirement, ctx *plugin.ProvideContext) {
	envVar := req.EnvVar()

	switch ctx.Config["source"] {
	case "stored", "default":
		value, _ := ctx.Config["value"].(string)
		ctx.Env[envVar] = value
	case "encrypted":
		payload, _ := ctx.Config["encrypted"].(string)
		password, ok := ctx.Env[secret.MasterPasswordVar]
		if !ok || password == "" {
			ctx.RecordErrorf("%s is required to decrypt the value for %s", secret.MasterPasswordVar, envVar)
			return
		}
		value, err := secret.Decrypt(payload, password)
		if err != nil {
			ctx.RecordErrorf("unable to decrypt the value for %s: %s", envVar, err)
			return
		}
		ctx.Env[envVar] = value
	}
}

// resolveSource picks where the value will come from: a stored value
// (plain or ENC[...]-marked), the project-file default, or the declared
// encrypted payload. The returned value is the plaintext for "stored"
// and "default", and the sealed token for "encrypted".
func (r *Requirement) resolveSource(st *state.File) (source, value string) {
	if stored, ok := storedValue(r, st); ok {
		if token, sealed := secret.UnwrapStored(stored); sealed {
			return "encrypted", token
		}
		return "stored", stored
	}
	if def, ok := r.defaultValue(); ok {
		return "default", def
	}
	if payload, ok := r.encryptedValue(); ok {
		return "encrypted", payload
	}
	return "unset", ""
}

func storedValue(r *Requirement, st *state.File) (string, bool) {
	if st == nil || r.isMasterPassword() {
		return "", false
	}
	return st.Value(r.envVar)
}

// Kind returns the fallback requirement kind: it claims any variable not
// claimed by a more specific kind.
func Kind() plugin.Kind {
	return plugin.Kind{
		Name: KindName,
		New: func(envVar string, options map[string]any) (plugin.Requirement, error) {
			return NewRequirement(envVar, options), nil
		},
		Providers: []string{ProviderName},
	}
}
