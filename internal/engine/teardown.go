package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/state"
	preflighterrors "github.com/preflight-sh/preflight/pkg/errors"
)

// Teardown stops every resource recorded in the project's run state by
// executing its shutdown commands, then clears the resource's entry and
// removes its services/<VAR> files. Every resource is attempted even when
// earlier ones fail; run state is cleared and saved per resource
// immediately, so a retried teardown never re-runs shutdown commands.
func (p *Preparer) Teardown(ctx context.Context, projectDir string, st *state.File) error {
	runStates := st.AllServiceRunStates()
	names := make([]string, 0, len(runStates))
	for name := range runStates {
		names = append(names, name)
	}
	sort.Strings(names)

	var failedNames []string
	for _, name := range names {
		ok := p.shutdownResource(ctx, name, runStates[name])

		st.SetServiceRunState(name, nil)
		if err := st.Save(); err != nil {
			return err
		}
		if err := os.RemoveAll(plugin.ServiceDir(projectDir, name)); err != nil {
			fmt.Fprintf(p.err, "unable to remove service files for %s: %s\n", name, err)
			ok = false
		}

		if !ok {
			fmt.Fprintf(p.err, "Shutdown commands failed for %s.\n", name)
			failedNames = append(failedNames, name)
		}
		p.log.WithRequirement(name).Debug("cleared run state")
	}

	// The services directory itself goes away once its last child does.
	_ = os.Remove(filepath.Join(projectDir, "services"))

	if len(failedNames) > 0 {
		return preflighterrors.NewExecutionError("",
			fmt.Errorf("shutdown failed for: %s", strings.Join(failedNames, ", ")))
	}
	return nil
}

func (p *Preparer) shutdownResource(ctx context.Context, name string, rs state.RunState) bool {
	commands, err := shutdownCommands(rs)
	if err != nil {
		fmt.Fprintf(p.err, "invalid shutdown_commands for %s: %s\n", name, err)
		return false
	}

	ok := true
	for _, args := range commands {
		if len(args) == 0 {
			continue
		}
		display := strings.Join(args, " ")
		fmt.Fprintf(p.out, "Running %q\n", display)

		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Stdout = p.out
		cmd.Stderr = p.err
		runErr := cmd.Run()

		var exitErr *exec.ExitError
		switch {
		case runErr == nil:
			fmt.Fprintf(p.out, "  exited with 0\n")
		case errors.As(runErr, &exitErr):
			code := exitErr.ExitCode()
			fmt.Fprintf(p.out, "  exited with %d\n", code)
			fmt.Fprintf(p.err, "Shutting down %s, command %q failed with code %d.\n", name, display, code)
			ok = false
		default:
			fmt.Fprintf(p.err, "Shutting down %s, command %q failed: %s\n", name, display, runErr)
			ok = false
		}
	}
	return ok
}

// shutdownCommands extracts the reserved key as a list of argument lists,
// tolerating the shapes a YAML round-trip or a direct provider write
// produce.
func shutdownCommands(rs state.RunState) ([][]string, error) {
	raw, ok := rs[state.ShutdownCommandsKey]
	if !ok {
		return nil, nil
	}

	if typed, ok := raw.([][]string); ok {
		return typed, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of command argument lists, got %T", raw)
	}

	out := make([][]string, 0, len(list))
	for _, item := range list {
		switch command := item.(type) {
		case []string:
			out = append(out, command)
		case []any:
			args := make([]string, 0, len(command))
			for _, a := range command {
				switch v := a.(type) {
				case string:
					args = append(args, v)
				case int:
					args = append(args, strconv.Itoa(v))
				default:
					return nil, fmt.Errorf("command argument %v is not a string", a)
				}
			}
			out = append(out, args)
		default:
			return nil, fmt.Errorf("expected a command argument list, got %T", item)
		}
	}
	return out, nil
}
