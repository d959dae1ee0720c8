package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountingYear bounds a fiscal year and carries its lock state.
// LockedUntil locks every date up to and including it; Locked closes the
// whole year.
type AccountingYear struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:ux_accounting_years_org_year,priority:1" json:"org_id"`
	Year        int          `gorm:"not null;uniqueIndex:ux_accounting_years_org_year,priority:2" json:"year"`
	StartDate   time.Time    `gorm:"column:start_date;not null" json:"start_date"`
	EndDate     time.Time    `gorm:"column:end_date;not null" json:"end_date"`
	LockedUntil *time.Time   `gorm:"column:locked_until" json:"locked_until,omitempty"`
	Locked      bool         `gorm:"not null;default:false" json:"locked"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (AccountingYear) TableName() string { return "accounting_years" }

// LockBoundary is the last locked date, or nil when nothing is locked.
func (y *AccountingYear) LockBoundary() *time.Time {
	if y == nil {
		return nil
	}
	if y.Locked {
		end := dateOnly(y.EndDate)
		return &end
	}
	if y.LockedUntil != nil {
		until := dateOnly(*y.LockedUntil)
		return &until
	}
	return nil
}

// Covers reports whether date falls within the year, inclusive.
func (y *AccountingYear) Covers(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(y.StartDate)) && !d.After(dateOnly(y.EndDate))
}

// CalendarYear returns the January to December bounds of year.
func CalendarYear(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
