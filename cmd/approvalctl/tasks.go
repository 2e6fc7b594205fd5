package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/viant/approval/service/event"
)

func newTasksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks APPROVER",
		Short: "List tasks awaiting an approver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := srv.GetPendingTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tasks)
		},
	}
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Apply timeout policies to every expired deadline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			handled, err := srv.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d instance(s) handled\n", handled)
			return err
		},
	}
}

// newServeCmd runs the sweeper on its schedule and logs workflow events
// until interrupted.
func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the timeout sweeper and log workflow events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv, err := a.engine(ctx)
			if err != nil {
				return err
			}
			srv.Events().SetListener(ctx, func(_ context.Context, evt *event.Event[event.Detail]) error {
				srv.Logger().WithFields(logrus.Fields{
					"type":     evt.Context.Type,
					"instance": evt.Context.InstanceID,
					"node":     evt.Context.NodeID,
				}).Info("workflow event")
				return nil
			})
			if err = srv.Runtime().Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}
