package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/preflight-sh/preflight/internal/config"
	"github.com/preflight-sh/preflight/internal/state"
)

func newServicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the services the project declares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := config.ParseProjectDir(flags.dir)
			if err != nil {
				return err
			}
			st, err := state.LoadForDirectory(flags.dir)
			if err != nil {
				return err
			}

			if len(project.Services) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No services declared in this project.")
				return nil
			}

			names := make([]string, 0, len(project.Services))
			for name := range project.Services {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				line := fmt.Sprintf("%s  %s", name, project.Services[name])
				if url, ok := st.ServiceRunState(name)["url"].(string); ok {
					line += "  " + url
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
