package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/preflight-sh/preflight/internal/config"
	"github.com/preflight-sh/preflight/internal/engine"
	"github.com/preflight-sh/preflight/internal/envmap"
	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/plugins"
	"github.com/preflight-sh/preflight/internal/state"
	"github.com/preflight-sh/preflight/internal/ui"
)

// preparedProject is what the shared prepare path hands the commands
// built on top of it.
type preparedProject struct {
	project *config.Project
	pairs   []plugin.Pair
	result  *engine.Result

	// dir is the absolute project directory, as injected into the
	// prepared environment.
	dir string
}

// prepareProject loads the project and drives a full preparation run.
// Provider output goes to out, failures to errOut. A run that leaves
// requirements missing returns the partial result together with an
// error.
func prepareProject(app *appContext, flags *rootFlags, interactive bool, out, errOut io.Writer) (*preparedProject, error) {
	project, err := config.ParseProjectDir(flags.dir)
	if err != nil {
		return nil, err
	}
	st, err := state.LoadForDirectory(flags.dir)
	if err != nil {
		return nil, err
	}
	pairs, err := plugins.FromConfig(project, app.registry)
	if err != nil {
		return nil, err
	}
	log, err := flags.newLogger()
	if err != nil {
		return nil, err
	}

	var face engine.UI = ui.NonInteractive{}
	if interactive {
		face = &ui.Terminal{Save: true}
	}

	preparer := engine.NewPreparer(app.registry, log, out, errOut)
	result, err := preparer.Prepare(flags.dir, pairs, envmap.FromOS(), st, face)
	if err != nil {
		return nil, err
	}

	prepared := &preparedProject{
		project: project,
		pairs:   pairs,
		result:  result,
		dir:     result.Env[engine.ProjectDirVar],
	}
	if !result.Success {
		return prepared, fmt.Errorf("unable to prepare project %s", project.Name)
	}
	return prepared, nil
}

func interactiveAllowed(nonInteractive bool) bool {
	return !nonInteractive && term.IsTerminal(int(os.Stdout.Fd()))
}

func newPrepareCmd(app *appContext, flags *rootFlags) *cobra.Command {
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare the project's runtime requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prepared, err := prepareProject(app, flags, interactiveAllowed(nonInteractive), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if prepared != nil {
				printRequirementStatuses(cmd.OutOrStdout(), prepared)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The project is ready to run.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for missing values")
	return cmd
}

// printRequirementStatuses shows one line per declared requirement,
// judged against the environment the run produced.
func printRequirementStatuses(out io.Writer, prepared *preparedProject) {
	for _, s := range engine.RequirementStatuses(prepared.pairs, prepared.result.Env) {
		if s.Satisfied {
			fmt.Fprintf(out, "  ready: %s\n", s.Title)
		} else {
			fmt.Fprintf(out, "  missing: %s (%s)\n", s.Title, s.Reason)
		}
	}
}
