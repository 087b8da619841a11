package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
	preflighterrors "github.com/preflight-sh/preflight/pkg/errors"
)

// missingVarsFunc selects which provider question drives an ordering:
// "what do you need before configuration" or "before providing". The same
// sort serves both.
type missingVarsFunc func(p plugin.Provider, req plugin.Requirement, env envmap.Map, st *state.File) []string

func missingVarsToConfigure(p plugin.Provider, req plugin.Requirement, env envmap.Map, st *state.File) []string {
	return p.MissingEnvVarsToConfigure(req, env, st)
}

func missingVarsToProvide(p plugin.Provider, req plugin.Requirement, env envmap.Map, st *state.File) []string {
	return p.MissingEnvVarsToProvide(req, env, st)
}

// pairDependencies returns the variables a pair still needs: the union of
// missingVars across its providers, minus anything already present in the
// environment. Present variables are trivially satisfied and never become
// edges.
func pairDependencies(pair plugin.Pair, env envmap.Map, st *state.File, missingVars missingVarsFunc) map[string]struct{} {
	deps := make(map[string]struct{})
	for _, prov := range pair.Providers {
		for _, envVar := range missingVars(prov, pair.Requirement, env, st) {
			if env.Has(envVar) {
				continue
			}
			deps[envVar] = struct{}{}
		}
	}
	return deps
}

// sortPairs orders pairs so that every pair supplying a variable precedes
// the pairs that need it. Independent pairs keep their input order. A
// dependency on a variable no pair supplies, or a dependency cycle, is an
// error.
func sortPairs(pairs []plugin.Pair, env envmap.Map, st *state.File, missingVars missingVarsFunc) ([]plugin.Pair, error) {
	indexByKey := make(map[string]int, len(pairs))
	for i, pair := range pairs {
		key := pair.EnvVar()
		if _, dup := indexByKey[key]; dup {
			return nil, preflighterrors.NewValidationError(key, "two requirements share one environment variable", nil)
		}
		indexByKey[key] = i
	}

	deps := make([]map[string]struct{}, len(pairs))
	for i, pair := range pairs {
		deps[i] = pairDependencies(pair, env, st, missingVars)
		for envVar := range deps[i] {
			if _, known := indexByKey[envVar]; !known {
				return nil, preflighterrors.NewValidationError(envVar,
					fmt.Sprintf("needed by %s but no requirement supplies it", pair.EnvVar()), nil)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	states := make([]int, len(pairs))
	order := make([]plugin.Pair, 0, len(pairs))
	var stack []string

	var visit func(i int) error
	visit = func(i int) error {
		switch states[i] {
		case visited:
			return nil
		case visiting:
			key := pairs[i].EnvVar()
			idx := indexOf(stack, key)
			cycle := append(append([]string{}, stack[idx:]...), key)
			return preflighterrors.NewValidationError("requirements",
				fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")), nil)
		}

		states[i] = visiting
		stack = append(stack, pairs[i].EnvVar())

		depKeys := make([]string, 0, len(deps[i]))
		for envVar := range deps[i] {
			depKeys = append(depKeys, envVar)
		}
		sort.Strings(depKeys)
		for _, envVar := range depKeys {
			if err := visit(indexByKey[envVar]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		states[i] = visited
		order = append(order, pairs[i])
		return nil
	}

	for i := range pairs {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func indexOf(slice []string, target string) int {
	for i, v := range slice {
		if v == target {
			return i
		}
	}
	return -1
}
