package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/preflight-sh/preflight/internal/envmap"
)

func newEnvCmd(app *appContext, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print export lines for the prepared environment",
		Long: "Prepares the project without prompting and prints a shell export line\n" +
			"for every variable preparation added or changed, suitable for eval.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Provider output moves to stderr so stdout stays evalable.
			prepared, err := prepareProject(app, flags, false, cmd.ErrOrStderr(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			base := envmap.FromOS()
			for _, key := range prepared.result.Env.Diff(base) {
				fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", key, shellQuote(prepared.result.Env[key]))
			}
			return nil
		},
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
