package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/smallbiznis/bookkeeping/internal/migration"
	organizationdomain "github.com/smallbiznis/bookkeeping/internal/organization/domain"
	"github.com/smallbiznis/bookkeeping/internal/orgcontext"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create an organization ready for posting",
	Long: `Create an organization with the default VAT types, chart of accounts,
the current accounting year and zeroed number series for every document class.`,
	Example: `  bookkeeping provision --name "Nørre Bageri ApS" --currency DKK --country DK`,
	RunE:    runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().String("name", "", "Organization name (required)")
	provisionCmd.Flags().String("currency", "DKK", "Base currency, ISO 4217")
	provisionCmd.Flags().String("country", "DK", "Country code, ISO 3166-1 alpha-2")
	_ = provisionCmd.MarkFlagRequired("name")
}

func runProvision(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	currency, _ := cmd.Flags().GetString("currency")
	country, _ := cmd.Flags().GetString("country")

	var orgs organizationdomain.Service
	return runOnce(cmd.Context(), fx.Options(infrastructure(), migration.Module, domains()), func(ctx context.Context) error {
		ctx = orgcontext.WithActor(ctx, "system")
		result, err := orgs.Provision(ctx, organizationdomain.ProvisionRequest{
			Name:         name,
			BaseCurrency: currency,
			CountryCode:  country,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}, &orgs)
}
