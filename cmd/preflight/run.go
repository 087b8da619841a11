package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/preflight-sh/preflight/internal/config"
)

func newRunCmd(app *appContext, flags *rootFlags) *cobra.Command {
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "run [command] [-- args...]",
		Short: "Prepare the project, then execute one of its commands",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
				args = args[1:]
			}

			prepared, err := prepareProject(app, flags, interactiveAllowed(nonInteractive), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cmdName, command, err := resolveCommand(prepared.project, name)
			if err != nil {
				return err
			}

			sh := exec.Command("/bin/sh", shellArgs(command, cmdName, args)...)
			sh.Dir = prepared.dir
			sh.Env = prepared.result.Env.Slice()
			sh.Stdin = os.Stdin
			sh.Stdout = cmd.OutOrStdout()
			sh.Stderr = cmd.ErrOrStderr()
			return sh.Run()
		},
	}

	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for missing values")
	return cmd
}

// resolveCommand picks the named command, or the project default when
// name is empty.
func resolveCommand(project *config.Project, name string) (string, config.Command, error) {
	if name == "" {
		cmdName, command, ok := project.DefaultCommand()
		if !ok {
			return "", config.Command{}, fmt.Errorf("project %s has no default command", project.Name)
		}
		return cmdName, command, nil
	}
	command, ok := project.Commands[name]
	if !ok {
		return "", config.Command{}, fmt.Errorf("project %s has no command named %q", project.Name, name)
	}
	return name, command, nil
}

// shellArgs builds the argv after /bin/sh. Extra args become the shell's
// positional parameters so their quoting survives.
func shellArgs(command config.Command, name string, extra []string) []string {
	if len(extra) == 0 {
		return []string{"-c", command.Shell}
	}
	args := []string{"-c", command.Shell + ` "$@"`, name}
	return append(args, extra...)
}
