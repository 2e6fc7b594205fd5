package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/approval/service/dao/definition"
)

func newDefinitionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "definition", Short: "Manage workflow definitions"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate URL",
			Short: "Check a YAML definition without publishing it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				def, err := definition.New().LoadURL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err = def.Validate(); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", def.ID)
				return err
			},
		},
		&cobra.Command{
			Use:   "publish URL",
			Short: "Publish a YAML definition as a new revision",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := a.engine(cmd.Context())
				if err != nil {
					return err
				}
				def, err := srv.PublishDefinitionURL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", def.ID, def.Version.String())
				return err
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Print the latest revision of a definition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := a.engine(cmd.Context())
				if err != nil {
					return err
				}
				def, err := srv.LoadDefinition(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), def)
			},
		},
		&cobra.Command{
			Use:   "deactivate ID",
			Short: "Stop new instances from starting on a definition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := a.engine(cmd.Context())
				if err != nil {
					return err
				}
				return srv.DeactivateDefinition(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
