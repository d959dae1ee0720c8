package rls

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// WithTenant scopes the current PostgreSQL transaction to orgID for row
// level security policies. Other engines rely on the org_id filters alone.
func WithTenant(tx *gorm.DB, orgID snowflake.ID) error {
	if tx == nil || tx.Dialector == nil || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SELECT set_config('app.current_org_id', ?, true)",
		strconv.FormatInt(orgID.Int64(), 10),
	).Error
}
