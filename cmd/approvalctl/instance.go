package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/approval"
)

func newInstanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "instance", Short: "Drive workflow instances"}
	cmd.AddCommand(
		newStartCmd(a),
		newActCmd(a),
		&cobra.Command{
			Use:   "show ID",
			Short: "Print an instance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				srv, err := a.engine(cmd.Context())
				if err != nil {
					return err
				}
				inst, err := srv.Instance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), inst)
			},
		},
		newCancelCmd(a),
		newSetCmd(a),
		newRetryCmd(a),
	)
	return cmd
}

func newStartCmd(a *app) *cobra.Command {
	var startedBy string
	var variables []string
	cmd := &cobra.Command{
		Use:   "start DEFINITION DOCUMENT",
		Short: "Start a workflow for a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			values, err := parseAssignments(variables)
			if err != nil {
				return err
			}
			id, err := srv.StartInstance(cmd.Context(), args[0], args[1], startedBy, values)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().StringVar(&startedBy, "by", "", "user starting the workflow")
	cmd.Flags().StringSliceVar(&variables, "var", nil, "initial variable as key=value")
	return cmd
}

func newActCmd(a *app) *cobra.Command {
	request := &approval.ActionRequest{}
	cmd := &cobra.Command{
		Use:   "act ID",
		Short: "Submit an approver decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			request.InstanceID = args[0]
			outcome, err := srv.SubmitApprovalAction(cmd.Context(), request)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&request.ApproverID, "approver", "", "acting approver id")
	flags.StringVar(&request.ApproverName, "name", "", "acting approver display name")
	flags.StringVar(&request.Action, "action", "", "Approve, Reject, Return or Delegate")
	flags.StringVar(&request.NodeID, "node", "", "approval node, required when several are pending")
	flags.StringVar(&request.Comment, "comment", "", "comment stored with the decision")
	flags.StringVar(&request.DelegateTo, "delegate-to", "", "delegate target for Delegate")
	_ = cmd.MarkFlagRequired("approver")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			return srv.CancelInstance(cmd.Context(), args[0], reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var variables []string
	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Merge variables into a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			values, err := parseAssignments(variables)
			if err != nil {
				return err
			}
			inst, err := srv.UpdateVariables(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inst.Variables)
		},
	}
	cmd.Flags().StringSliceVar(&variables, "var", nil, "variable as key=value")
	return cmd
}

func newRetryCmd(a *app) *cobra.Command {
	var positions []string
	cmd := &cobra.Command{
		Use:   "retry ID",
		Short: "Re-enter the nodes an instance faulted on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			inst, err := srv.RetryFault(cmd.Context(), args[0], positions...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inst)
		},
	}
	cmd.Flags().StringSliceVar(&positions, "position", nil, "faulted position to retry, all when omitted")
	return cmd
}
