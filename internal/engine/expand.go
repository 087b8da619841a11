package engine

import (
	"fmt"
	"sort"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
	preflighterrors "github.com/preflight-sh/preflight/pkg/errors"
)

// maxExpansionPasses bounds the fixed-point loop. Every pass must add at
// least one pair to continue, so a cap this size is only reachable when a
// provider keeps minting fresh variable names.
const maxExpansionPasses = 100

// expandRequirements grows the pair list until every variable any provider
// reports as missing is itself backed by a requirement. New pairs are
// synthesized through the registry with empty options and appended in
// sorted-variable order, so expansion is deterministic. A variable the
// registry cannot resolve is fatal.
func expandRequirements(pairs []plugin.Pair, reg *plugin.Registry, env envmap.Map, st *state.File) ([]plugin.Pair, error) {
	for pass := 0; pass < maxExpansionPasses; pass++ {
		present := make(map[string]bool, len(pairs))
		for _, pair := range pairs {
			present[pair.EnvVar()] = true
		}

		needed := make(map[string]struct{})
		for _, pair := range pairs {
			for _, prov := range pair.Providers {
				for _, envVar := range prov.MissingEnvVarsToConfigure(pair.Requirement, env, st) {
					needed[envVar] = struct{}{}
				}
				for _, envVar := range prov.MissingEnvVarsToProvide(pair.Requirement, env, st) {
					needed[envVar] = struct{}{}
				}
			}
		}

		var missing []string
		for envVar := range needed {
			if !present[envVar] {
				missing = append(missing, envVar)
			}
		}
		if len(missing) == 0 {
			return pairs, nil
		}
		sort.Strings(missing)

		for _, envVar := range missing {
			pair, err := reg.FindByEnvVar(envVar, nil)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair)
		}
	}

	return nil, preflighterrors.NewExecutionError("",
		fmt.Errorf("requirement expansion did not converge after %d passes", maxExpansionPasses))
}
