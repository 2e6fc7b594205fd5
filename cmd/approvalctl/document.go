package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/approval/model"
)

// documentWriter is implemented by the bundled document stores.
type documentWriter interface {
	PutDocument(ctx context.Context, doc *model.Document) error
}

func newDocumentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "document", Short: "Manage business documents"}
	var status string
	var fields []string
	put := &cobra.Command{
		Use:   "put ID",
		Short: "Create or replace a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			values, err := parseAssignments(fields)
			if err != nil {
				return err
			}
			writer, ok := srv.Documents().(documentWriter)
			if !ok {
				return fmt.Errorf("document store %T is read only", srv.Documents())
			}
			return writer.PutDocument(cmd.Context(), &model.Document{ID: args[0], Status: status, Fields: values})
		},
	}
	put.Flags().StringVar(&status, "status", "Submitted", "document status")
	put.Flags().StringSliceVarP(&fields, "field", "f", nil, "document field as key=value")
	cmd.AddCommand(put, &cobra.Command{
		Use:   "show ID",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := srv.Documents().GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	})
	return cmd
}
