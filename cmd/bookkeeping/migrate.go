package main

import (
	"github.com/smallbiznis/bookkeeping/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), fx.Options(infrastructure(), migration.Module), nil)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
