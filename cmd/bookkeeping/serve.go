package main

import (
	"github.com/smallbiznis/bookkeeping/internal/migration"
	"github.com/smallbiznis/bookkeeping/internal/ratelimit"
	"github.com/smallbiznis/bookkeeping/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the /v1 HTTP API. The schema is migrated on startup unless
--skip-migrate is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("skip-migrate", false, "Do not apply schema migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	skipMigrate, _ := cmd.Flags().GetBool("skip-migrate")

	opts := []fx.Option{
		infrastructure(),
		domains(),
		ratelimit.Module,
		server.Module,
	}
	if !skipMigrate {
		opts = append(opts, migration.Module)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
