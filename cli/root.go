package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfigFile = "bookstore.yaml"

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookstore",
		Short:         "Bookstore data-access service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	addGlobalFlags(root)
	root.AddCommand(
		ServeCmd(),
		MigrateCmd(),
		PingCmd(),
		BooksCmd(),
		TodosCmd(),
	)
	return root
}

func addGlobalFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to YAML configuration file")
	flags.String("env-file", ".env", "Path to environment file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.String("db-conn-string", "", "PostgreSQL connection string")
	flags.String("db-host", "", "PostgreSQL host")
	flags.String("db-port", "", "PostgreSQL port")
	flags.String("db-user", "", "PostgreSQL user")
	flags.String("db-password", "", "PostgreSQL password")
	flags.String("db-name", "", "PostgreSQL database name")
}
