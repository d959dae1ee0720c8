package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	db := cfg.Database
	switch strings.ToLower(strings.TrimSpace(db.Type)) {
	case DialectMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
		)), nil
	case DialectPostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			db.Host,
			db.User,
			db.Password,
			db.Name,
			db.Port,
			db.SSLMode,
		)), nil
	case DialectSQLite:
		path := strings.TrimSpace(db.Name)
		if path == "" {
			path = "bookkeeping.db"
		}
		return sqlite.Open(SQLiteDSN(path)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", db.Type)
	}
}

// SQLiteDSN opens path with foreign keys, WAL and immediate transactions.
// Deferred transactions that read before writing fail with SQLITE_BUSY
// instead of waiting on busy_timeout when another writer holds the lock.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}
