package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/bookkeeping/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeping/internal/audit/domain"
	"github.com/smallbiznis/bookkeeping/internal/config"
	ledgerdomain "github.com/smallbiznis/bookkeeping/internal/ledger/domain"
	orgdomain "github.com/smallbiznis/bookkeeping/internal/organization/domain"
	perioddomain "github.com/smallbiznis/bookkeeping/internal/period/domain"
	vatdomain "github.com/smallbiznis/bookkeeping/internal/vat/domain"
	voucherdomain "github.com/smallbiznis/bookkeeping/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeping/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations/postgres"

// Models lists every table the ledger owns, parents first.
func Models() []any {
	return []any{
		&orgdomain.Organization{},
		&vatdomain.VatType{},
		&accountdomain.Account{},
		&perioddomain.AccountingYear{},
		&voucherdomain.Voucher{},
		&voucherdomain.VoucherLine{},
		&voucherdomain.VoucherSequence{},
		&ledgerdomain.LedgerEntry{},
		&auditdomain.AuditRecord{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL
// migrations, which also install row level security and the write-once
// triggers. MySQL and SQLite fall back to gorm AutoMigrate.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("migration")

	dialect := strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	switch dialect {
	case db.DialectPostgres:
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("postgres migrations applied")
		return nil
	case db.DialectMySQL, db.DialectSQLite, "":
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("schema auto-migrated", zap.String("dialect", dialect))
		return nil
	default:
		return fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
