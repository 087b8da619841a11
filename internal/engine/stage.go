package engine

import (
	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// Stage is one resumable unit of the preparation chain. A stage is
// consumed exactly once: Execute performs its work and returns the next
// stage, or nil when the chain is exhausted. Failed is meaningful only
// after Execute returns.
type Stage interface {
	// Description says what executing this stage will do, for display
	// before the stage runs.
	Description() string

	Execute(ui UI) Stage

	Failed() bool
}

// UI is the engine's single suspension point: before each work stage runs,
// Configure may inspect the upcoming pairs and record choices (typically
// variable values written to state) that providers pick up. The engine
// blocks until Configure returns.
type UI interface {
	Configure(ctx *ConfigureContext)
}

// ConfigureContext is what a UI may see and touch at the checkpoint.
type ConfigureContext struct {
	Pairs      []plugin.Pair
	Env        envmap.Map
	State      *state.File
	ProjectDir string
}

// funcStage runs a closure. The closure receives the stage so it can set
// the failed flag.
type funcStage struct {
	description string
	failed      bool
	run         func(s *funcStage, ui UI) Stage
}

func (s *funcStage) Description() string { return s.description }
func (s *funcStage) Failed() bool        { return s.failed }

func (s *funcStage) Execute(ui UI) Stage {
	return s.run(s, ui)
}

// andThenStage runs an inner chain to completion, then asks andThen for
// the continuation. Failure of the inner chain short-circuits: the
// continuation is never produced.
type andThenStage struct {
	current Stage
	andThen func() Stage
}

func newAndThen(stage Stage, andThen func() Stage) Stage {
	return &andThenStage{current: stage, andThen: andThen}
}

func (s *andThenStage) Description() string { return s.current.Description() }
func (s *andThenStage) Failed() bool        { return s.current.Failed() }

func (s *andThenStage) Execute(ui UI) Stage {
	next := s.current.Execute(ui)
	if next == nil {
		if s.current.Failed() {
			return nil
		}
		return s.andThen()
	}
	return &andThenStage{current: next, andThen: s.andThen}
}
