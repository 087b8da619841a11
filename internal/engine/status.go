package engine

import (
	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
)

// RequirementStatus is a read-only snapshot of one requirement's
// satisfaction state.
type RequirementStatus struct {
	EnvVar    string
	Title     string
	Satisfied bool
	Reason    string
}

// RequirementStatuses evaluates each pair against env without side
// effects, in input order.
func RequirementStatuses(pairs []plugin.Pair, env envmap.Map) []RequirementStatus {
	statuses := make([]RequirementStatus, 0, len(pairs))
	for _, pair := range pairs {
		why := pair.Requirement.WhyNotProvided(env)
		statuses = append(statuses, RequirementStatus{
			EnvVar:    pair.EnvVar(),
			Title:     pair.Requirement.Title(),
			Satisfied: why == "",
			Reason:    why,
		})
	}
	return statuses
}
