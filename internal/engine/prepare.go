// Package engine implements requirement preparation: expanding a project's
// requirement set to the variables providers transitively need, ordering
// and partitioning the work into resumable stages, executing the stages
// with partial-failure semantics, and committing the resulting environment
// atomically. Teardown of provider side effects lives here too.
package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/logger"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
)

// ProjectDirVar is injected into the working environment before any
// provider runs, so providers and commands can resolve project-relative
// paths.
const ProjectDirVar = "PROJECT_DIR"

const (
	configureDescription = "Customize how project requirements will be met."
	provideDescription   = "Set up project requirements."
)

// Preparer drives requirement preparation and teardown for projects.
type Preparer struct {
	registry *plugin.Registry
	log      *logger.Logger
	out      io.Writer
	err      io.Writer
}

// NewPreparer wires a preparer to a registry and output channels. Provider
// logs go to out, failures to errOut; nil writers default to the process
// streams.
func NewPreparer(registry *plugin.Registry, log *logger.Logger, out, errOut io.Writer) *Preparer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Preparer{registry: registry, log: log, out: out, err: errOut}
}

// MissingRequirement reports one requirement still unsatisfied after its
// stage ran.
type MissingRequirement struct {
	EnvVar string
	Title  string
	Reason string
}

// Result is the outcome of driving a preparation to completion.
type Result struct {
	Success bool
	RunID   string

	// Env is the working environment after the chain ran. On success its
	// changes have been committed to the caller's map; on failure the
	// caller's map is untouched and Env is only useful for inspection.
	Env envmap.Map

	Missing []MissingRequirement
}

// prepareRun is the mutable state shared by every stage of one run.
type prepareRun struct {
	preparer   *Preparer
	projectDir string
	env        envmap.Map
	base       envmap.Map
	st         *state.File
	runID      string
	missing    []MissingRequirement
}

// Preparation is an in-flight preparation: the head of the stage chain
// plus the working state the chain mutates. Callers either drive it stage
// by stage through Stage and Execute, or hand it to Run.
type Preparation struct {
	run  *prepareRun
	head Stage
}

// Stage returns the head of the stage chain.
func (p *Preparation) Stage() Stage { return p.head }

// RunID identifies this preparation run.
func (p *Preparation) RunID() string { return p.run.runID }

// Run drives the chain until no stage remains or one fails, then commits
// the environment diff to the caller's map if everything succeeded.
func (p *Preparation) Run(ui UI) *Result {
	stage := p.head
	failed := false
	for stage != nil {
		p.run.preparer.log.Debugf("executing stage: %s", stage.Description())
		next := stage.Execute(ui)
		if stage.Failed() {
			failed = true
			break
		}
		stage = next
	}

	result := &Result{
		Success: !failed,
		RunID:   p.run.runID,
		Env:     p.run.env,
		Missing: p.run.missing,
	}
	if !failed {
		p.run.base.ApplyDiff(p.run.env, p.run.env.Diff(p.run.base))
	}
	return result
}

// PrepareInStages expands the project's requirements, validates that they
// can be ordered, and builds the stage chain. The chain works against a
// private copy of env with ProjectDirVar injected; env itself is only
// written by Preparation.Run, and only on success.
//
// An unresolvable variable, a duplicate requirement, or a dependency cycle
// in the initial set is reported here, before any stage runs.
func (p *Preparer) PrepareInStages(projectDir string, pairs []plugin.Pair, env envmap.Map, st *state.File) (*Preparation, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}

	working := env.Clone()
	working[ProjectDirVar] = absDir

	expanded, err := expandRequirements(pairs, p.registry, working, st)
	if err != nil {
		return nil, err
	}
	if _, err := sortPairs(expanded, working, st, missingVarsToConfigure); err != nil {
		return nil, err
	}

	run := &prepareRun{
		preparer:   p,
		projectDir: absDir,
		env:        working,
		base:       env,
		st:         st,
		runID:      uuid.NewString(),
	}
	p.log.WithFields(map[string]any{"run_id": run.runID, "requirements": len(expanded)}).
		Debug("built preparation stage chain")
	return &Preparation{run: run, head: run.processPairs(expanded)}, nil
}

// Prepare runs the whole preparation in one call.
func (p *Preparer) Prepare(projectDir string, pairs []plugin.Pair, env envmap.Map, st *state.File, ui UI) (*Result, error) {
	prep, err := p.PrepareInStages(projectDir, pairs, env, st)
	if err != nil {
		return nil, err
	}
	return prep.Run(ui), nil
}

// processPairs builds the chain for a configure-ordered batch: configure
// and provide the pairs that are ready now, then re-partition whatever
// those unblocked. The recursion lives inside the continuation, so the
// chain grows only as stages complete.
func (r *prepareRun) processPairs(pairs []plugin.Pair) Stage {
	ordered, err := sortPairs(pairs, r.env, r.st, missingVarsToConfigure)
	if err != nil {
		return r.newSortFailedStage(err)
	}

	head, tail := partitionFirstGroupToConfigure(ordered, r.env, r.st)
	switch {
	case len(head) > 0 && len(tail) > 0:
		return newAndThen(r.newConfigureStage(head), func() Stage {
			return r.processPairs(tail)
		})
	case len(head) > 0:
		return r.newConfigureStage(head)
	default:
		return r.newConfigureStage(tail)
	}
}

// newConfigureStage is the UI checkpoint. It hands the upcoming pairs to
// the UI and then yields the work stage for them.
func (r *prepareRun) newConfigureStage(pairs []plugin.Pair) Stage {
	return &funcStage{
		description: configureDescription,
		run: func(_ *funcStage, ui UI) Stage {
			if ui != nil {
				ui.Configure(&ConfigureContext{
					Pairs:      pairs,
					Env:        r.env,
					State:      r.st,
					ProjectDir: r.projectDir,
				})
			}
			return r.newWorkStage(pairs)
		},
	}
}

// newWorkStage configures and provides a batch of pairs, then verifies
// every requirement in the batch.
func (r *prepareRun) newWorkStage(pairs []plugin.Pair) Stage {
	return &funcStage{
		description: provideDescription,
		run: func(s *funcStage, _ UI) Stage {
			ordered, err := sortPairs(pairs, r.env, r.st, missingVarsToProvide)
			if err != nil {
				fmt.Fprintln(r.preparer.err, err.Error())
				s.failed = true
				return nil
			}

			for _, pair := range ordered {
				r.provideOne(pair)
			}

			for _, pair := range pairs {
				why := pair.Requirement.WhyNotProvided(r.env)
				if why == "" {
					continue
				}
				s.failed = true
				r.missing = append(r.missing, MissingRequirement{
					EnvVar: pair.EnvVar(),
					Title:  pair.Requirement.Title(),
					Reason: why,
				})
				fmt.Fprintf(r.preparer.err, "missing requirement to run this project: %s\n", pair.Requirement.Title())
				fmt.Fprintf(r.preparer.err, "  %s\n", why)
			}
			return nil
		},
	}
}

// newSortFailedStage surfaces an ordering error discovered mid-chain,
// after earlier stages already ran, as a stage failure.
func (r *prepareRun) newSortFailedStage(err error) Stage {
	return &funcStage{
		description: provideDescription,
		run: func(s *funcStage, _ UI) Stage {
			fmt.Fprintln(r.preparer.err, err.Error())
			s.failed = true
			return nil
		},
	}
}

// provideOne runs a pair's providers in order until the requirement is
// satisfied, flushing each call's logs before its errors.
func (r *prepareRun) provideOne(pair plugin.Pair) {
	req := pair.Requirement
	log := r.preparer.log.WithRequirement(req.EnvVar())

	if req.WhyNotProvided(r.env) == "" {
		log.Debug("requirement already satisfied, skipping providers")
		return
	}

	for _, prov := range pair.Providers {
		if req.WhyNotProvided(r.env) == "" {
			break
		}

		cfg, err := prov.ReadConfig(req, &plugin.ConfigContext{
			Env:        r.env,
			State:      r.st,
			ProjectDir: r.projectDir,
		})
		if err != nil {
			fmt.Fprintf(r.preparer.err, "unable to read %s config for %s: %s\n",
				prov.Name(), req.EnvVar(), err.Error())
			continue
		}

		ctx := &plugin.ProvideContext{
			Env:        r.env,
			State:      r.st,
			Config:     cfg,
			ProjectDir: r.projectDir,
			RunID:      r.runID,
		}
		log.Debugf("invoking provider %s", prov.Name())
		prov.Provide(req, ctx)

		for _, line := range ctx.Logs() {
			fmt.Fprintln(r.preparer.out, line)
		}
		for _, line := range ctx.Errors() {
			fmt.Fprintln(r.preparer.err, line)
		}
	}
}
