// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant.
type Organization struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string            `gorm:"type:varchar(255);not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	BaseCurrency string            `gorm:"column:base_currency;type:varchar(3);not null" json:"base_currency"`
	CountryCode  string            `gorm:"column:country_code;type:varchar(2)" json:"country_code"`
	Metadata     datatypes.JSONMap `json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
