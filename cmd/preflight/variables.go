package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/preflight-sh/preflight/internal/secret"
	"github.com/preflight-sh/preflight/internal/state"
)

func newVariablesCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variables",
		Short: "Manage variable values stored in local project state",
	}
	cmd.AddCommand(newVariablesListCmd(flags))
	cmd.AddCommand(newVariablesSetCmd(flags))
	cmd.AddCommand(newVariablesUnsetCmd(flags))
	return cmd
}

func newVariablesListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List values stored for this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := state.LoadForDirectory(flags.dir)
			if err != nil {
				return err
			}

			values := st.Values()
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				value := values[name]
				if _, sealed := secret.UnwrapStored(value); sealed {
					value = "<encrypted>"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, value)
			}
			return nil
		},
	}
}

func newVariablesSetCmd(flags *rootFlags) *cobra.Command {
	var encrypt bool

	cmd := &cobra.Command{
		Use:   "set NAME=VALUE",
		Short: "Store a variable value for this project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value, ok := strings.Cut(args[0], "=")
			if !ok || name == "" {
				return fmt.Errorf("expected NAME=VALUE, got %q", args[0])
			}
			if name == secret.MasterPasswordVar {
				return fmt.Errorf("%s is never stored; export it in the environment instead", secret.MasterPasswordVar)
			}

			if encrypt {
				password := os.Getenv(secret.MasterPasswordVar)
				if password == "" {
					return fmt.Errorf("%s must be set to encrypt values", secret.MasterPasswordVar)
				}
				token, err := secret.Encrypt(value, password)
				if err != nil {
					return err
				}
				value = secret.WrapStored(token)
			}

			st, err := state.LoadForDirectory(flags.dir)
			if err != nil {
				return err
			}
			st.SetValue(name, value)
			if err := st.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s.\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt the value with the master password before storing it")
	return cmd
}

func newVariablesUnsetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unset NAME",
		Short: "Forget a stored variable value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := state.LoadForDirectory(flags.dir)
			if err != nil {
				return err
			}
			st.UnsetValue(args[0])
			if err := st.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unset %s.\n", args[0])
			return nil
		},
	}
}
