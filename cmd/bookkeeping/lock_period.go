package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeping/internal/orgcontext"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var lockPeriodCmd = &cobra.Command{
	Use:   "lock-period",
	Short: "Lock an accounting year up to a date",
	Long: `Lock every date of an accounting year up to and including --until.
Vouchers dated inside the locked range are rejected. --unlock clears the lock.`,
	Example: `  bookkeeping lock-period --org 1790123456789012480 --year 2024 --until 2024-06-30
  bookkeeping lock-period --org 1790123456789012480 --year 2024 --unlock`,
	RunE: runLockPeriod,
}

func init() {
	rootCmd.AddCommand(lockPeriodCmd)

	lockPeriodCmd.Flags().String("org", "", "Organization ID (required)")
	lockPeriodCmd.Flags().Int("year", 0, "Accounting year (required)")
	lockPeriodCmd.Flags().String("until", "", "Last locked date, YYYY-MM-DD")
	lockPeriodCmd.Flags().Bool("unlock", false, "Clear the lock instead of setting it")
	_ = lockPeriodCmd.MarkFlagRequired("org")
	_ = lockPeriodCmd.MarkFlagRequired("year")
}

func runLockPeriod(cmd *cobra.Command, args []string) error {
	rawOrg, _ := cmd.Flags().GetString("org")
	year, _ := cmd.Flags().GetInt("year")
	until, _ := cmd.Flags().GetString("until")
	unlock, _ := cmd.Flags().GetBool("unlock")

	orgID, err := snowflake.ParseString(rawOrg)
	if err != nil || orgID <= 0 {
		return errors.New("--org must be an organization ID")
	}

	var lockedUntil time.Time
	if !unlock {
		if until == "" {
			return errors.New("--until is required unless --unlock is set")
		}
		lockedUntil, err = time.Parse(time.DateOnly, until)
		if err != nil {
			return errors.New("--until must be YYYY-MM-DD")
		}
	}

	var periods perioddomain.Service
	return runOnce(cmd.Context(), fx.Options(infrastructure(), domains()), func(ctx context.Context) error {
		ctx = orgcontext.WithActor(orgcontext.WithOrgID(ctx, orgID), "system")

		var (
			result *perioddomain.AccountingYear
			err    error
		)
		if unlock {
			result, err = periods.UnlockPeriod(ctx, orgID, year)
		} else {
			result, err = periods.LockPeriod(ctx, orgID, year, lockedUntil)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}, &periods)
}
