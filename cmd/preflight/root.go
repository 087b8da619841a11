package main

import (
	"github.com/spf13/cobra"

	"github.com/preflight-sh/preflight/internal/logger"
	"github.com/preflight-sh/preflight/internal/plugin"
)

// appContext carries the process-wide wiring every command shares.
type appContext struct {
	registry *plugin.Registry
}

type rootFlags struct {
	dir     string
	verbose bool
}

func (f *rootFlags) newLogger() (*logger.Logger, error) {
	level := "info"
	if f.verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, HumanReadable: true})
}

func newRootCmd(registry *plugin.Registry) *cobra.Command {
	flags := &rootFlags{}
	app := &appContext{registry: registry}

	cmd := &cobra.Command{
		Use:           "preflight",
		Short:         "Preflight prepares a project's runtime requirements before it runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.dir, "dir", ".", "Project directory")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newPrepareCmd(app, flags))
	cmd.AddCommand(newCleanCmd(app, flags))
	cmd.AddCommand(newRunCmd(app, flags))
	cmd.AddCommand(newEnvCmd(app, flags))
	cmd.AddCommand(newServicesCmd(flags))
	cmd.AddCommand(newVariablesCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
