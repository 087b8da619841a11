// Package plugin defines the contracts the preparation engine schedules:
// requirements (environment variables a project needs) and providers
// (capabilities that can satisfy them), plus the registry that maps a
// variable name to both.
package plugin

import (
	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/state"
)

// Config holds a provider's resolved configuration for one provide call.
// Providers document their own keys; the engine treats it as opaque.
type Config map[string]any

// Requirement identifies one environment variable that must end up set to
// a usable value. Implementations are keyed by EnvVar, which must be unique
// across a working set.
type Requirement interface {
	// EnvVar returns the environment variable this requirement fills.
	EnvVar() string

	// Title returns a short human-readable description for status output.
	Title() string

	// Options returns the requirement's options from the project file.
	// Synthesized requirements carry an empty map.
	Options() map[string]any

	// WhyNotProvided explains why the requirement is not satisfied by the
	// given environment, or returns "" when it is. This is the single
	// source of truth for "is this satisfied".
	WhyNotProvided(env envmap.Map) string
}

// Provider is a capability that can satisfy one requirement.
//
// MissingEnvVarsToConfigure and MissingEnvVarsToProvide report variables
// the provider still needs before it can be configured or can act; the
// engine uses them to order and partition work, and to discover
// requirements transitively.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string

	MissingEnvVarsToConfigure(req Requirement, env envmap.Map, st *state.File) []string
	MissingEnvVarsToProvide(req Requirement, env envmap.Map, st *state.File) []string

	// ReadConfig resolves the provider's configuration for a requirement
	// from the environment and persisted state.
	ReadConfig(req Requirement, ctx *ConfigContext) (Config, error)

	// Provide performs the side effects that satisfy the requirement:
	// setting ctx.Env values, starting processes, writing run state.
	// Problems are reported through ctx.RecordError, not returned; the
	// engine keeps preparing independent requirements afterward.
	Provide(req Requirement, ctx *ProvideContext)
}

// Pair binds a requirement to its candidate providers, in the order they
// will be attempted. It is the unit the scheduler reasons about.
type Pair struct {
	Requirement Requirement
	Providers   []Provider
}

// EnvVar returns the pair's node key.
func (p Pair) EnvVar() string {
	return p.Requirement.EnvVar()
}
