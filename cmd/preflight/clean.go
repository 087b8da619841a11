package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflight-sh/preflight/internal/engine"
	"github.com/preflight-sh/preflight/internal/state"
)

func newCleanCmd(app *appContext, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Stop project services and forget local run state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := state.LoadForDirectory(flags.dir)
			if err != nil {
				return err
			}
			log, err := flags.newLogger()
			if err != nil {
				return err
			}

			preparer := engine.NewPreparer(app.registry, log, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err := preparer.Teardown(cmd.Context(), flags.dir, st); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleaned.")
			return nil
		},
	}
}
