package cli

import (
	"context"
	"errors"

	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/spf13/cobra"
)

// TodosCmd groups the todo commands.
func TodosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todos",
		Short: "Transactional workload over the todos table",
	}
	cmd.AddCommand(todosWorkloadCmd())
	return cmd
}

func todosWorkloadCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Run the rollback/implicit rollback/commit isolation workload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, port bookstore.Port) error {
				report, err := port.RunTransactionalWorkload(ctx, id)
				if report != nil {
					if perr := printJSON(cmd, report); perr != nil {
						return errors.Join(err, perr)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 1, "Todo id the workload inserts")
	return cmd
}
