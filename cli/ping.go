package cli

import (
	"fmt"

	"github.com/compozy/bookstore/pkg/config"
	"github.com/spf13/cobra"
)

// PingCmd runs the store sanity query.
func PingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the database answers a sanity query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, svc, err := openService(ctx, config.FromContext(ctx), false)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)
			if err := svc.Ping(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
}
