package engine

import (
	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// partitionFirstGroupToConfigure splits a configure-ordered pair list into
// the pairs that can be configured right now (head) and everything from
// the first blocked pair onward (tail). The walk stops at the first pair
// whose providers still miss a configuration variable; later pairs are not
// inspected and keep their order in tail. head ++ tail is always the input
// unchanged.
//
// Stopping at the first blocked pair can strand later, independently-ready
// pairs in tail; they get their own stage once the blocker's inputs exist.
// Maximizing head is not worth giving up the single obvious checkpoint per
// wave.
func partitionFirstGroupToConfigure(pairs []plugin.Pair, env envmap.Map, st *state.File) (head, tail []plugin.Pair) {
	cut := len(pairs)
	for i, pair := range pairs {
		if len(pairDependencies(pair, env, st, missingVarsToConfigure)) > 0 {
			cut = i
			break
		}
	}
	return pairs[:cut], pairs[cut:]
}
