package db

import (
	"database/sql"

	"gorm.io/gorm"
)

// SerializableTx returns the isolation options for posting transactions.
// SQLite serializes writers on its own and rejects explicit isolation levels.
func SerializableTx(conn *gorm.DB) []*sql.TxOptions {
	if conn == nil || conn.Dialector == nil || conn.Dialector.Name() == DialectSQLite {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
}
