// Package ui holds the configure-checkpoint front ends the engine can
// block on: a terminal prompt for values only the user can supply, and a
// no-op used when stdout is not a terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/preflight-sh/preflight/internal/engine"
	"github.com/preflight-sh/preflight/internal/plugins/envvalue"
	"github.com/preflight-sh/preflight/internal/secret"
)

// NonInteractive answers every configure checkpoint without asking
// anything; requirements nothing can resolve end up in the missing list.
type NonInteractive struct{}

func (NonInteractive) Configure(*engine.ConfigureContext) {}

// Terminal asks the user for plain variables nothing else can resolve.
// Typed values are written into the working environment; with Save set
// they are also persisted to the state file, except the master password,
// which never leaves the process.
type Terminal struct {
	Out  io.Writer
	Save bool
}

// runPrompt is swapped out in tests; running a real program needs a tty.
var runPrompt = func(m promptModel) (promptModel, error) {
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return promptModel{}, err
	}
	return final.(promptModel), nil
}

func (t *Terminal) Configure(ctx *engine.ConfigureContext) {
	fields := promptFields(ctx)
	if len(fields) == 0 {
		return
	}

	final, err := runPrompt(newPromptModel(fields))
	if err != nil {
		fmt.Fprintf(t.out(), "prompt failed: %s\n", err)
		return
	}
	if final.cancelled {
		return
	}

	saved := false
	for envVar, value := range final.values() {
		ctx.Env[envVar] = value
		if t.Save && ctx.State != nil && envVar != secret.MasterPasswordVar {
			ctx.State.SetValue(envVar, value)
			saved = true
		}
	}
	if saved {
		if err := ctx.State.Save(); err != nil {
			fmt.Fprintf(t.out(), "unable to save %s: %s\n", ctx.State.Path(), err)
		}
	}
}

func (t *Terminal) out() io.Writer {
	if t.Out != nil {
		return t.Out
	}
	return os.Stderr
}

// promptFields picks the pairs worth asking about: plain value
// requirements that are unsatisfied and have no stored value, default or
// encrypted payload to fall back on.
func promptFields(ctx *engine.ConfigureContext) []promptField {
	var fields []promptField
	for _, pair := range ctx.Pairs {
		req, ok := pair.Requirement.(*envvalue.Requirement)
		if !ok {
			continue
		}
		if req.WhyNotProvided(ctx.Env) == "" || req.CanResolve(ctx.State) {
			continue
		}
		sensitive := req.EnvVar() == secret.MasterPasswordVar
		fields = append(fields, newPromptField(req.EnvVar(), req.Description(), sensitive))
	}
	return fields
}
