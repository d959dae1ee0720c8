package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeping/internal/account"
	"github.com/smallbiznis/bookkeeping/internal/audit"
	"github.com/smallbiznis/bookkeeping/internal/authorization"
	"github.com/smallbiznis/bookkeeping/internal/cache"
	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"github.com/smallbiznis/bookkeeping/internal/ledger"
	"github.com/smallbiznis/bookkeeping/internal/observability"
	"github.com/smallbiznis/bookkeeping/internal/organization"
	"github.com/smallbiznis/bookkeeping/internal/period"
	"github.com/smallbiznis/bookkeeping/internal/vat"
	"github.com/smallbiznis/bookkeeping/internal/voucher"
	"github.com/smallbiznis/bookkeeping/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "bookkeeping",
	Short: "Double-entry voucher posting and ledger service",
	Long: `bookkeeping posts balanced vouchers with gap-free numbering per
organization and document class, guards locked accounting periods and keeps
an audit trail of every change.

Configuration is read from the environment, an optional .env file and the
file named by BOOKKEEPING_CONFIG.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// infrastructure wires config, logging, tracing, metrics and storage.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
	)
}

// domains wires every bookkeeping service.
func domains() fx.Option {
	return fx.Options(
		audit.Module,
		vat.Module,
		account.Module,
		period.Module,
		ledger.Module,
		voucher.Module,
		organization.Module,
		authorization.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// runOnce starts the graph, hands control to fn and stops it again. Values
// fn needs are pulled out of the graph through targets.
func runOnce(ctx context.Context, opts fx.Option, fn func(context.Context) error, targets ...any) error {
	app := fx.New(
		opts,
		fx.Populate(targets...),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}
