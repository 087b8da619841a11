package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
)

func TestPartitionAllReady(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "p"}
	pairs := []plugin.Pair{pairFor("A", prov), pairFor("B", prov)}

	head, tail := partitionFirstGroupToConfigure(pairs, envmap.Map{}, newSortState(t))
	assert.Equal(t, []string{"A", "B"}, keysOf(head))
	assert.Empty(t, tail)
}

func TestPartitionStopsAtFirstBlockedPair(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "p", configNeeds: map[string][]string{"B": {"A"}}}
	pairs := []plugin.Pair{pairFor("A", prov), pairFor("B", prov), pairFor("C", prov)}

	head, tail := partitionFirstGroupToConfigure(pairs, envmap.Map{}, newSortState(t))
	assert.Equal(t, []string{"A"}, keysOf(head))
	// C is ready too, but the walk stops at B; C stays behind it unchanged.
	assert.Equal(t, []string{"B", "C"}, keysOf(tail))

	// head ++ tail is the input, order preserved.
	assert.Equal(t, keysOf(pairs), append(keysOf(head), keysOf(tail)...))
}

func TestPartitionFirstPairBlocked(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "p", configNeeds: map[string][]string{"A": {"X"}}}
	pairs := []plugin.Pair{pairFor("A", prov), pairFor("B", prov)}

	head, tail := partitionFirstGroupToConfigure(pairs, envmap.Map{}, newSortState(t))
	assert.Empty(t, head)
	assert.Equal(t, []string{"A", "B"}, keysOf(tail))
}

func TestPartitionHeadHasNoMissingConfigureVars(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "p", configNeeds: map[string][]string{
		"B": {"A"},
		"C": {"B"},
	}}
	pairs := []plugin.Pair{pairFor("A", prov), pairFor("B", prov), pairFor("C", prov)}

	st := newSortState(t)
	env := envmap.Map{}
	head, _ := partitionFirstGroupToConfigure(pairs, env, st)
	require.NotEmpty(t, head)
	for _, pair := range head {
		assert.Empty(t, pairDependencies(pair, env, st, missingVarsToConfigure))
	}
}

func TestPartitionTreatsSatisfiedVarsAsReady(t *testing.T) {
	t.Parallel()

	prov := &fakeProvider{name: "p", configNeeds: map[string][]string{"B": {"A"}}}
	pairs := []plugin.Pair{pairFor("B", prov)}

	head, tail := partitionFirstGroupToConfigure(pairs, envmap.Map{"A": "set"}, newSortState(t))
	assert.Equal(t, []string{"B"}, keysOf(head))
	assert.Empty(t, tail)
}

func TestPartitionEmptyInput(t *testing.T) {
	t.Parallel()

	head, tail := partitionFirstGroupToConfigure(nil, envmap.Map{}, newSortState(t))
	assert.Empty(t, head)
	assert.Empty(t, tail)
}
